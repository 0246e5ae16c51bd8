package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one executed payment as remembered by the velocity store.
type Transaction struct {
	IntentID    string          `json:"intent_id"`
	Amount      decimal.Decimal `json:"amount"`
	Merchant    string          `json:"merchant"`
	Geolocation string          `json:"geolocation,omitempty"`
	At          time.Time       `json:"at"`
}

// History is a user's recent activity as owned by the velocity store.
type History struct {
	Recent        []Transaction
	HourHistogram [24]int
	RecentGeos    []string
}

// Samples returns the number of transactions behind the hour histogram.
func (h History) Samples() int {
	n := 0
	for _, c := range h.HourHistogram {
		n += c
	}
	return n
}

// PriorState is the summary of state owned by the router that the evaluator
// needs. The evaluator never reads stores itself.
type PriorState struct {
	// PayloadHash is the scope hash previously seen for this intent id, or "".
	PayloadHash string
	// IssuedScope is the scope of a token already issued for this intent id.
	IssuedScope *Scope
	// ReferencedScope is the scope of the token named by Intent.ConsentRef.
	ReferencedScope *Scope
	// ReferencedIntentID is the intent the referenced token was issued for.
	ReferencedIntentID string
	SessionUntrusted   bool
	History            History
}
