package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"payguard/internal/domain"
)

type EvaluatorSuite struct {
	suite.Suite
	eval *Evaluator
}

func TestEvaluatorSuite(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) SetupTest() {
	s.eval = NewEvaluator(MustDefault())
}

func (s *EvaluatorSuite) TestApprove() {
	res := s.eval.Evaluate(paymentIntent("120"), healthySnapshot(), domain.PriorState{})

	s.Equal(DecisionApprove, res.Decision)
	s.Empty(res.TriggeredRules)
	s.Zero(res.Score)
	s.Equal("1.0.0", res.PolicyVersion)
}

func (s *EvaluatorSuite) TestHardInvariants() {
	s.Run("insufficient balance", func() {
		snap := healthySnapshot()
		snap.WalletBalance = decimal.NewNullDecimal(amt("50"))
		res := s.eval.Evaluate(paymentIntent("100"), snap, domain.PriorState{})

		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"INSUFFICIENT_BALANCE"}, res.RuleIDs())
		s.Equal(1.0, res.Score)
	})

	s.Run("per-transaction cap regardless of other fields", func() {
		in := paymentIntent("500.01")
		in.MerchantReference = "unknown"
		res := s.eval.Evaluate(in, domain.ContextSnapshot{}, domain.PriorState{SessionUntrusted: true})

		s.Equal(DecisionDeny, res.Decision)
		s.True(res.Fired(RuleAmountLimitExceeded))
		s.True(res.Fired(RuleContextIncomplete))
		s.False(res.Fired(RuleSessionUntrusted), "layer 3 must not run after a layer 1 deny")
	})

	s.Run("cap is inclusive", func() {
		snap := healthySnapshot()
		snap.DailySpend = decimal.NewNullDecimal(decimal.Zero)
		res := s.eval.Evaluate(paymentIntent("500"), snap, domain.PriorState{})
		s.False(res.Fired(RuleAmountLimitExceeded))
	})

	s.Run("daily cap", func() {
		snap := healthySnapshot()
		snap.DailySpend = decimal.NewNullDecimal(amt("1900"))
		snap.WalletBalance = decimal.NewNullDecimal(amt("5000"))
		res := s.eval.Evaluate(paymentIntent("150"), snap, domain.PriorState{})

		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"DAILY_LIMIT_EXCEEDED"}, res.RuleIDs())
	})

	s.Run("incomplete intent is rejected not coerced", func() {
		in := paymentIntent("10")
		in.Currency = ""
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{})

		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"INTENT_INCOMPLETE"}, res.RuleIDs())
		s.Contains(res.TriggeredRules[0].Detail, "currency")
	})

	s.Run("over-cap amount is recorded even when the intent is incomplete", func() {
		in := paymentIntent("100000")
		in.Currency = ""
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{})

		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"INTENT_INCOMPLETE", "AMOUNT_LIMIT_EXCEEDED"}, res.RuleIDs())
	})

	s.Run("malformed merchant is recorded alongside an incomplete intent", func() {
		in := paymentIntent("10")
		in.Currency = ""
		in.MerchantReference = "unknown"
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{})

		s.Equal([]string{"INTENT_INCOMPLETE", "MERCHANT_INVALID"}, res.RuleIDs())
	})

	s.Run("missing snapshot field", func() {
		snap := healthySnapshot()
		snap.DeviceKnown = nil
		res := s.eval.Evaluate(paymentIntent("10"), snap, domain.PriorState{})

		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"CONTEXT_INCOMPLETE"}, res.RuleIDs())
		s.Contains(res.TriggeredRules[0].Detail, "device_known")
	})
}

func (s *EvaluatorSuite) TestVelocity() {
	s.Run("eleven small payments then a twelfth cools down", func() {
		snap := healthySnapshot()
		snap.TxnCount5m = ptr(11)
		prior := domain.PriorState{History: domain.History{
			Recent: executedAt(11, "40", "chai-stall@upi", 25*time.Second),
		}}
		res := s.eval.Evaluate(paymentIntent("40"), snap, prior)

		s.Equal(DecisionCooldown, res.Decision)
		s.True(res.Fired(RuleVelocityLimit))
		s.False(res.Fired(RuleIntentSplitting))
	})

	s.Run("history count wins over a stale snapshot count", func() {
		prior := domain.PriorState{History: domain.History{
			Recent: executedAt(10, "5", "other@upi", 20*time.Second),
		}}
		res := s.eval.Evaluate(paymentIntent("40"), healthySnapshot(), prior)
		s.True(res.Fired(RuleVelocityLimit))
	})

	s.Run("drain pattern", func() {
		prior := domain.PriorState{History: domain.History{
			Recent: executedAt(2, "99.50", "chai-stall@upi", 30*time.Second),
		}}
		res := s.eval.Evaluate(paymentIntent("100"), healthySnapshot(), prior)

		s.Equal(DecisionCooldown, res.Decision)
		s.Equal([]string{"RAPID_REPEAT_AMOUNT"}, res.RuleIDs())
	})

	s.Run("drain outside tolerance is ignored", func() {
		prior := domain.PriorState{History: domain.History{
			Recent: executedAt(2, "90", "chai-stall@upi", 30*time.Second),
		}}
		res := s.eval.Evaluate(paymentIntent("100"), healthySnapshot(), prior)
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("splitting escalates", func() {
		prior := domain.PriorState{History: domain.History{Recent: []domain.Transaction{
			{Amount: amt("300"), Merchant: "chai-stall@upi", At: testNow.Add(-5 * time.Minute)},
			{Amount: amt("150"), Merchant: "chai-stall@upi", At: testNow.Add(-2 * time.Minute)},
		}}}
		res := s.eval.Evaluate(paymentIntent("150"), healthySnapshot(), prior)

		s.Equal(DecisionEscalate, res.Decision)
		s.True(res.Fired(RuleIntentSplitting))
	})

	s.Run("unusual hour with an established pattern", func() {
		var hist [24]int
		hist[9] = 15
		hist[19] = 10
		prior := domain.PriorState{History: domain.History{HourHistogram: hist}}
		res := s.eval.Evaluate(paymentIntent("40"), healthySnapshot(), prior)

		s.Equal(DecisionCooldown, res.Decision)
		s.Equal([]string{"UNUSUAL_HOUR"}, res.RuleIDs())
	})

	s.Run("unusual hour needs enough samples", func() {
		var hist [24]int
		hist[9] = 3
		prior := domain.PriorState{History: domain.History{HourHistogram: hist}}
		res := s.eval.Evaluate(paymentIntent("40"), healthySnapshot(), prior)
		s.Equal(DecisionApprove, res.Decision)
	})
}

func (s *EvaluatorSuite) TestThreats() {
	in := paymentIntent("100")
	scope := in.Scope()
	hash, err := scope.Hash()
	s.Require().NoError(err)

	s.Run("replayed id with different payload", func() {
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{PayloadHash: "deadbeef"})
		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"INTENT_REPLAY"}, res.RuleIDs())
		s.False(res.KillSession)
	})

	s.Run("same payload is not a replay", func() {
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{PayloadHash: hash})
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("tampering after issuance kills the session", func() {
		issued := scope
		issued.MerchantReference = "original@upi"
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{PayloadHash: "x", IssuedScope: &issued})

		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"INTENT_TAMPERED"}, res.RuleIDs())
		s.True(res.KillSession)
		s.True(res.SessionUntrusted)
	})

	s.Run("consent reuse across merchants", func() {
		reuse := in
		reuse.ConsentRef = "tok-1"
		other := scope
		other.MerchantReference = "someone-else@upi"
		res := s.eval.Evaluate(reuse, healthySnapshot(), domain.PriorState{ReferencedScope: &other, ReferencedIntentID: in.IntentID})

		s.Equal(DecisionDeny, res.Decision)
		s.True(res.Fired(RuleConsentReuse))
		s.True(res.SessionUntrusted)
		s.False(res.KillSession)
	})

	s.Run("unknown consent reference", func() {
		reuse := in
		reuse.ConsentRef = "tok-missing"
		res := s.eval.Evaluate(reuse, healthySnapshot(), domain.PriorState{})
		s.True(res.Fired(RuleConsentReuse))
	})

	s.Run("matching consent reference is allowed", func() {
		reuse := in
		reuse.ConsentRef = "tok-1"
		res := s.eval.Evaluate(reuse, healthySnapshot(), domain.PriorState{ReferencedScope: &scope, ReferencedIntentID: in.IntentID})
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("untrusted session", func() {
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{SessionUntrusted: true})
		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"SESSION_UNTRUSTED"}, res.RuleIDs())
	})

	s.Run("deny wins over a velocity flag", func() {
		snap := healthySnapshot()
		snap.TxnCount5m = ptr(12)
		res := s.eval.Evaluate(in, snap, domain.PriorState{SessionUntrusted: true})
		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"VELOCITY_LIMIT", "SESSION_UNTRUSTED"}, res.RuleIDs())
	})
}

func (s *EvaluatorSuite) TestBehavioral() {
	s.Run("new device above limit requires reauth", func() {
		snap := healthySnapshot()
		snap.DeviceKnown = ptr(false)
		res := s.eval.Evaluate(paymentIntent("250"), snap, domain.PriorState{})

		s.Equal(DecisionRequireReauth, res.Decision)
		s.Equal([]string{"NEW_DEVICE"}, res.RuleIDs())
	})

	s.Run("new device below limit passes", func() {
		snap := healthySnapshot()
		snap.DeviceKnown = ptr(false)
		res := s.eval.Evaluate(paymentIntent("150"), snap, domain.PriorState{})
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("low reputation ignored when whitelisted", func() {
		snap := healthySnapshot()
		snap.MerchantReputation = ptr(0.1)
		snap.MerchantWhitelist = true
		res := s.eval.Evaluate(paymentIntent("50"), snap, domain.PriorState{})
		s.Equal(DecisionApprove, res.Decision)

		snap.MerchantWhitelist = false
		res = s.eval.Evaluate(paymentIntent("50"), snap, domain.PriorState{})
		s.Equal([]string{"LOW_MERCHANT_REPUTATION"}, res.RuleIDs())
	})

	s.Run("geo mismatch only with history", func() {
		prior := domain.PriorState{History: domain.History{RecentGeos: []string{"IN-MH"}}}
		res := s.eval.Evaluate(paymentIntent("50"), healthySnapshot(), prior)
		s.Equal([]string{"GEO_MISMATCH"}, res.RuleIDs())

		res = s.eval.Evaluate(paymentIntent("50"), healthySnapshot(), domain.PriorState{})
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("low confidence only tightens", func() {
		in := paymentIntent("50")
		in.RawConfidence = ptr(0.4)
		res := s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{})
		s.Equal(DecisionRequireReauth, res.Decision)

		in.RawConfidence = ptr(0.99)
		res = s.eval.Evaluate(in, healthySnapshot(), domain.PriorState{})
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("behavioral flag combined with velocity escalates", func() {
		snap := healthySnapshot()
		snap.TxnCount5m = ptr(10)
		snap.SessionAgeSeconds = ptr(int64(5))
		res := s.eval.Evaluate(paymentIntent("50"), snap, domain.PriorState{})

		s.Equal(DecisionEscalate, res.Decision)
		s.Equal([]string{"VELOCITY_LIMIT", "SESSION_TOO_YOUNG"}, res.RuleIDs())
		s.InDelta(0.6, res.Score, 1e-9)
	})

	s.Run("score is clamped", func() {
		snap := healthySnapshot()
		snap.DeviceKnown = ptr(false)
		snap.AccountAgeDays = ptr(1)
		snap.MerchantReputation = ptr(0.1)
		snap.RefundRate = ptr(0.5)
		res := s.eval.Evaluate(paymentIntent("300"), snap, domain.PriorState{})
		s.Equal(1.0, res.Score)
	})
}

func (s *EvaluatorSuite) TestNonPaymentIntents() {
	in := domain.Intent{IntentID: "intent-q", Type: domain.IntentBalanceInquiry}

	s.Run("approved without a snapshot", func() {
		res := s.eval.Evaluate(in, domain.ContextSnapshot{}, domain.PriorState{})
		s.Equal(DecisionApprove, res.Decision)
	})

	s.Run("denied for an untrusted session", func() {
		res := s.eval.Evaluate(in, domain.ContextSnapshot{}, domain.PriorState{SessionUntrusted: true})
		s.Equal(DecisionDeny, res.Decision)
		s.Equal([]string{"SESSION_UNTRUSTED"}, res.RuleIDs())
	})

	s.Run("denied when the intent id was first used for a payment", func() {
		paid, err := paymentIntent("100").Scope().Hash()
		s.Require().NoError(err)
		res := s.eval.Evaluate(in, domain.ContextSnapshot{}, domain.PriorState{PayloadHash: paid})
		s.Equal(DecisionDeny, res.Decision)
		s.True(res.Fired(RuleIntentReplay))
	})
}

func TestReduceTieBreak(t *testing.T) {
	cases := []struct {
		in   []Decision
		want Decision
	}{
		{nil, DecisionApprove},
		{[]Decision{DecisionRequireReauth, DecisionCooldown}, DecisionCooldown},
		{[]Decision{DecisionCooldown, DecisionEscalate, DecisionApprove}, DecisionEscalate},
		{[]Decision{DecisionEscalate, DecisionDeny}, DecisionDeny},
	}
	for _, c := range cases {
		if got := Reduce(c.in...); got != c.want {
			t.Fatalf("Reduce(%v) = %s, want %s", c.in, got, c.want)
		}
	}
}
