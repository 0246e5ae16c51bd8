package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"payguard/pkg/canonical"
)

// Scope is what a consent token authorizes: one merchant, one amount, one
// currency, one intent type.
type Scope struct {
	MerchantReference string          `json:"merchant_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Type              IntentType      `json:"type"`
}

// scopeWire fixes the amount encoding so 100 and 100.00 hash identically.
type scopeWire struct {
	MerchantReference string     `json:"merchant_reference"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	Type              IntentType `json:"type"`
}

// Hash returns the SHA-256 over the RFC 8785 canonical JSON of the scope.
func (s Scope) Hash() (string, error) {
	return canonical.Hash(scopeWire{
		MerchantReference: s.MerchantReference,
		Amount:            s.Amount.String(),
		Currency:          s.Currency,
		Type:              s.Type,
	})
}

// Equal compares scopes by value; amounts compare numerically.
func (s Scope) Equal(o Scope) bool {
	return s.MerchantReference == o.MerchantReference &&
		s.Currency == o.Currency &&
		s.Type == o.Type &&
		s.Amount.Equal(o.Amount)
}

// ErrMalformedScope is returned by ParseScope for anything that is not exactly
// one scope object.
var ErrMalformedScope = errors.New("malformed scope payload")

// ParseScope decodes a raw scope payload strictly. Unknown fields, trailing data
// and missing members are rejected; member order is irrelevant.
func ParseScope(raw []byte) (Scope, error) {
	var w struct {
		MerchantReference *string          `json:"merchant_reference"`
		Amount            *decimal.Decimal `json:"amount"`
		Currency          *string          `json:"currency"`
		Type              *IntentType      `json:"type"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Scope{}, fmt.Errorf("%w: %v", ErrMalformedScope, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Scope{}, fmt.Errorf("%w: trailing data", ErrMalformedScope)
	}
	if w.MerchantReference == nil || w.Amount == nil || w.Currency == nil || w.Type == nil {
		return Scope{}, fmt.Errorf("%w: missing member", ErrMalformedScope)
	}
	return Scope{
		MerchantReference: *w.MerchantReference,
		Amount:            *w.Amount,
		Currency:          *w.Currency,
		Type:              *w.Type,
	}, nil
}
