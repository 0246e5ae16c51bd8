package policy

import (
	"time"

	"github.com/shopspring/decimal"

	"payguard/internal/domain"
)

var testNow = time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func paymentIntent(amount string) domain.Intent {
	return domain.Intent{
		IntentID:          "intent-1",
		Type:              domain.IntentPayment,
		Amount:            decimal.NewNullDecimal(amt(amount)),
		Currency:          "INR",
		MerchantReference: "chai-stall@upi",
		CreatedAt:         testNow.Add(-time.Second),
	}
}

func ptr[T any](v T) *T {
	return &v
}

// healthySnapshot approves a small payment with no history.
func healthySnapshot() domain.ContextSnapshot {
	return domain.ContextSnapshot{
		WalletBalance:      decimal.NewNullDecimal(amt("1500")),
		DailySpend:         decimal.NewNullDecimal(amt("100")),
		TxnCount5m:         ptr(0),
		DeviceKnown:        ptr(true),
		Geolocation:        "IN-KA",
		AccountAgeDays:     ptr(365),
		SessionAgeSeconds:  ptr(int64(1800)),
		MerchantReputation: ptr(0.9),
		RefundRate:         ptr(0.02),
		CapturedAt:         testNow,
	}
}

// executedAt returns n payments of amount to merchant spaced step apart, ending
// just before testNow.
func executedAt(n int, amount, merchant string, step time.Duration) []domain.Transaction {
	txs := make([]domain.Transaction, 0, n)
	for i := n; i >= 1; i-- {
		txs = append(txs, domain.Transaction{
			IntentID: "prior",
			Amount:   amt(amount),
			Merchant: merchant,
			At:       testNow.Add(-time.Duration(i) * step),
		})
	}
	return txs
}
