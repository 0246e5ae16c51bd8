package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContextSnapshot is the point-in-time view of facts supplied by upstream
// systems. Required facts are pointers so a missing value is distinguishable
// from zero. Snapshots are never cached.
type ContextSnapshot struct {
	WalletBalance      decimal.NullDecimal `json:"wallet_balance"`
	DailySpend         decimal.NullDecimal `json:"daily_spend"`
	TxnCount5m         *int                `json:"txn_count_5m"`
	DeviceKnown        *bool               `json:"device_known"`
	Geolocation        string              `json:"geolocation,omitempty"`
	AccountAgeDays     *int                `json:"account_age_days"`
	SessionAgeSeconds  *int64              `json:"session_age_seconds"`
	MerchantReputation *float64            `json:"merchant_reputation"`
	MerchantWhitelist  bool                `json:"merchant_whitelisted"`
	RefundRate         *float64            `json:"refund_rate,omitempty"`
	// CapturedAt is "now" for the evaluation that consumes this snapshot.
	CapturedAt time.Time `json:"captured_at"`
}

// Missing lists absent or malformed fields needed to evaluate money rules.
func (c ContextSnapshot) Missing() []string {
	var missing []string
	if !c.WalletBalance.Valid || c.WalletBalance.Decimal.IsNegative() {
		missing = append(missing, "wallet_balance")
	}
	if !c.DailySpend.Valid || c.DailySpend.Decimal.IsNegative() {
		missing = append(missing, "daily_spend")
	}
	if c.TxnCount5m == nil || *c.TxnCount5m < 0 {
		missing = append(missing, "txn_count_5m")
	}
	if c.DeviceKnown == nil {
		missing = append(missing, "device_known")
	}
	if c.AccountAgeDays == nil || *c.AccountAgeDays < 0 {
		missing = append(missing, "account_age_days")
	}
	if c.SessionAgeSeconds == nil || *c.SessionAgeSeconds < 0 {
		missing = append(missing, "session_age_seconds")
	}
	if c.MerchantReputation == nil || !unit(*c.MerchantReputation) {
		missing = append(missing, "merchant_reputation")
	}
	if c.RefundRate != nil && !unit(*c.RefundRate) {
		missing = append(missing, "refund_rate")
	}
	if c.CapturedAt.IsZero() {
		missing = append(missing, "captured_at")
	}
	return missing
}

// SessionAge returns the session age as a duration. Call only after Missing
// reported the snapshot complete.
func (c ContextSnapshot) SessionAge() time.Duration {
	if c.SessionAgeSeconds == nil {
		return 0
	}
	return time.Duration(*c.SessionAgeSeconds) * time.Second
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}
