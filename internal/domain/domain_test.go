package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type DomainSuite struct {
	suite.Suite
}

func TestDomainSuite(t *testing.T) {
	suite.Run(t, new(DomainSuite))
}

func payment(amount string) Intent {
	return Intent{
		IntentID:          "int-1",
		Type:              IntentPayment,
		Amount:            decimal.NewNullDecimal(decimal.RequireFromString(amount)),
		Currency:          "INR",
		MerchantReference: "merchant-a",
		CreatedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (s *DomainSuite) TestIntentMissing() {
	s.Run("complete payment", func() {
		s.Empty(payment("100").Missing())
	})

	s.Run("payment without amount or merchant", func() {
		in := payment("100")
		in.Amount = decimal.NullDecimal{}
		in.MerchantReference = " "
		s.Equal([]string{"amount", "merchant_reference"}, in.Missing())
	})

	s.Run("zero amount and unknown currency", func() {
		in := payment("0")
		in.Currency = "ZZZ"
		s.Equal([]string{"amount", "currency"}, in.Missing())
	})

	s.Run("lower-case currency rejected", func() {
		in := payment("10")
		in.Currency = "inr"
		s.Equal([]string{"currency"}, in.Missing())
	})

	s.Run("balance inquiry needs no money fields", func() {
		in := Intent{IntentID: "int-2", Type: IntentBalanceInquiry}
		s.Empty(in.Missing())
	})

	s.Run("confidence out of range", func() {
		in := payment("10")
		c := 1.5
		in.RawConfidence = &c
		s.Equal([]string{"raw_confidence"}, in.Missing())
	})
}

func (s *DomainSuite) TestScopeHash() {
	s.Run("trailing zeros do not change the hash", func() {
		a, err := payment("100").Scope().Hash()
		s.Require().NoError(err)
		b, err := payment("100.00").Scope().Hash()
		s.Require().NoError(err)
		s.Equal(a, b)
	})

	s.Run("merchant change changes the hash", func() {
		a, err := payment("100").Scope().Hash()
		s.Require().NoError(err)
		in := payment("100")
		in.MerchantReference = "merchant-b"
		b, err := in.Scope().Hash()
		s.Require().NoError(err)
		s.NotEqual(a, b)
	})
}

func (s *DomainSuite) TestSnapshotMissing() {
	s.Run("empty snapshot lists every required field", func() {
		missing := ContextSnapshot{}.Missing()
		s.Contains(missing, "wallet_balance")
		s.Contains(missing, "captured_at")
		s.NotContains(missing, "refund_rate")
	})

	s.Run("reputation out of range is malformed", func() {
		snap := completeSnapshot()
		bad := 1.2
		snap.MerchantReputation = &bad
		s.Equal([]string{"merchant_reputation"}, snap.Missing())
	})

	s.Run("complete snapshot", func() {
		s.Empty(completeSnapshot().Missing())
	})
}

func completeSnapshot() ContextSnapshot {
	count := 0
	known := true
	age := 400
	session := int64(3600)
	rep := 0.9
	return ContextSnapshot{
		WalletBalance:      decimal.NewNullDecimal(decimal.NewFromInt(1000)),
		DailySpend:         decimal.NewNullDecimal(decimal.Zero),
		TxnCount5m:         &count,
		DeviceKnown:        &known,
		AccountAgeDays:     &age,
		SessionAgeSeconds:  &session,
		MerchantReputation: &rep,
		CapturedAt:         time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestParseScope(t *testing.T) {
	t.Run("member order is irrelevant", func(t *testing.T) {
		a, err := ParseScope([]byte(`{"type":"PAYMENT","currency":"INR","amount":"100.00","merchant_reference":"m"}`))
		require.NoError(t, err)
		b, err := ParseScope([]byte(`{"merchant_reference":"m","amount":100,"currency":"INR","type":"PAYMENT"}`))
		require.NoError(t, err)
		ha, _ := a.Hash()
		hb, _ := b.Hash()
		assert.Equal(t, ha, hb)
		assert.True(t, a.Equal(b))
	})

	t.Run("unknown member is rejected", func(t *testing.T) {
		_, err := ParseScope([]byte(`{"merchant_reference":"m","amount":"1","currency":"INR","type":"PAYMENT","memo":"x"}`))
		assert.ErrorIs(t, err, ErrMalformedScope)
	})

	t.Run("missing member is rejected", func(t *testing.T) {
		_, err := ParseScope([]byte(`{"merchant_reference":"m","amount":"1","currency":"INR"}`))
		assert.ErrorIs(t, err, ErrMalformedScope)
	})

	t.Run("trailing data is rejected", func(t *testing.T) {
		_, err := ParseScope([]byte(`{"merchant_reference":"m","amount":"1","currency":"INR","type":"PAYMENT"}{}`))
		assert.ErrorIs(t, err, ErrMalformedScope)
	})
}

func FuzzParseScope(f *testing.F) {
	f.Add([]byte(`{"merchant_reference":"m","amount":"1","currency":"INR","type":"PAYMENT"}`))
	f.Add([]byte(`{"amount":1e3}`))
	f.Add([]byte(`[]`))
	f.Fuzz(func(t *testing.T, raw []byte) {
		s, err := ParseScope(raw)
		if err != nil {
			return
		}
		if _, err := s.Hash(); err != nil {
			t.Fatalf("parsed scope failed to hash: %v", err)
		}
	})
}
