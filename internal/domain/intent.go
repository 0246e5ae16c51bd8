// Package domain holds the value types shared by the evaluator, router, consent
// manager and ledger. Nothing here performs I/O.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// IntentType is the kind of action an upstream interpreter proposes.
type IntentType string

const (
	IntentPayment        IntentType = "PAYMENT"
	IntentBalanceInquiry IntentType = "BALANCE_INQUIRY"
	IntentHistory        IntentType = "HISTORY"
	IntentAnalysis       IntentType = "ANALYSIS"
)

// IsValid reports whether t is a known intent type.
func (t IntentType) IsValid() bool {
	switch t {
	case IntentPayment, IntentBalanceInquiry, IntentHistory, IntentAnalysis:
		return true
	}
	return false
}

// MovesMoney reports whether the intent is subject to money rules and consent.
func (t IntentType) MovesMoney() bool {
	return t == IntentPayment
}

// Intent is a structured, untrusted proposal. It is immutable once submitted:
// a changed payload needs a new IntentID.
type Intent struct {
	IntentID          string              `json:"intent_id"`
	Type              IntentType          `json:"type"`
	Amount            decimal.NullDecimal `json:"amount"`
	Currency          string              `json:"currency,omitempty"`
	MerchantReference string              `json:"merchant_reference,omitempty"`
	// RawConfidence is advisory only and may make a decision stricter, never looser.
	RawConfidence *float64  `json:"raw_confidence,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	// ConsentRef names a token the caller claims applies to this intent.
	ConsentRef string `json:"consent_ref,omitempty"`
}

// Missing lists the fields required for the intent's type that are absent or
// malformed. An empty result means the intent is complete.
func (i Intent) Missing() []string {
	var missing []string
	if strings.TrimSpace(i.IntentID) == "" {
		missing = append(missing, "intent_id")
	}
	if !i.Type.IsValid() {
		missing = append(missing, "type")
	}
	if i.RawConfidence != nil && (*i.RawConfidence < 0 || *i.RawConfidence > 1) {
		missing = append(missing, "raw_confidence")
	}
	if !i.Type.MovesMoney() {
		return missing
	}
	if !i.Amount.Valid || !i.Amount.Decimal.IsPositive() {
		missing = append(missing, "amount")
	}
	if !ValidCurrency(i.Currency) {
		missing = append(missing, "currency")
	}
	if strings.TrimSpace(i.MerchantReference) == "" {
		missing = append(missing, "merchant_reference")
	}
	return missing
}

// Scope is the part of an intent a consent token is bound to.
func (i Intent) Scope() Scope {
	s := Scope{
		MerchantReference: i.MerchantReference,
		Currency:          i.Currency,
		Type:              i.Type,
	}
	if i.Amount.Valid {
		s.Amount = i.Amount.Decimal
	}
	return s
}

// AmountOrZero returns the amount, or zero when absent.
func (i Intent) AmountOrZero() decimal.Decimal {
	if i.Amount.Valid {
		return i.Amount.Decimal
	}
	return decimal.Zero
}

// ValidCurrency reports whether code is an upper-case ISO 4217 code.
func ValidCurrency(code string) bool {
	if len(code) != 3 || strings.ToUpper(code) != code {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
