package policy

// RuleID names a rule. Ids are stable and appear in ledger entries.
type RuleID string

// Layer groups rules by the outcome they can produce.
type Layer int

const (
	LayerHard       Layer = 1
	LayerVelocity   Layer = 2
	LayerThreat     Layer = 3
	LayerBehavioral Layer = 4
)

// Layer 1: hard invariants.
const (
	RuleIntentIncomplete    RuleID = "INTENT_INCOMPLETE"
	RuleContextIncomplete   RuleID = "CONTEXT_INCOMPLETE"
	RuleMerchantInvalid     RuleID = "MERCHANT_INVALID"
	RuleAmountLimitExceeded RuleID = "AMOUNT_LIMIT_EXCEEDED"
	RuleDailyLimitExceeded  RuleID = "DAILY_LIMIT_EXCEEDED"
	RuleInsufficientBalance RuleID = "INSUFFICIENT_BALANCE"
)

// Layer 2: velocity and temporal.
const (
	RuleVelocityLimit     RuleID = "VELOCITY_LIMIT"
	RuleRapidRepeatAmount RuleID = "RAPID_REPEAT_AMOUNT"
	RuleIntentSplitting   RuleID = "INTENT_SPLITTING"
	RuleUnusualHour       RuleID = "UNUSUAL_HOUR"
)

// Layer 3: agentic-threat defense.
const (
	RuleIntentReplay     RuleID = "INTENT_REPLAY"
	RuleConsentReuse     RuleID = "CONSENT_REUSE"
	RuleIntentTampered   RuleID = "INTENT_TAMPERED"
	RuleSessionUntrusted RuleID = "SESSION_UNTRUSTED"
)

// Layer 4: behavioral and contextual.
const (
	RuleNewDevice             RuleID = "NEW_DEVICE"
	RuleGeoMismatch           RuleID = "GEO_MISMATCH"
	RuleSessionTooYoung       RuleID = "SESSION_TOO_YOUNG"
	RuleAccountTooNew         RuleID = "ACCOUNT_TOO_NEW"
	RuleLowMerchantReputation RuleID = "LOW_MERCHANT_REPUTATION"
	RuleHighRefundRate        RuleID = "HIGH_REFUND_RATE"
	RuleLowConfidence         RuleID = "LOW_CONFIDENCE"
)

var builtinLayers = map[RuleID]Layer{
	RuleIntentIncomplete:    LayerHard,
	RuleContextIncomplete:   LayerHard,
	RuleMerchantInvalid:     LayerHard,
	RuleAmountLimitExceeded: LayerHard,
	RuleDailyLimitExceeded:  LayerHard,
	RuleInsufficientBalance: LayerHard,

	RuleVelocityLimit:     LayerVelocity,
	RuleRapidRepeatAmount: LayerVelocity,
	RuleIntentSplitting:   LayerVelocity,
	RuleUnusualHour:       LayerVelocity,

	RuleIntentReplay:     LayerThreat,
	RuleConsentReuse:     LayerThreat,
	RuleIntentTampered:   LayerThreat,
	RuleSessionUntrusted: LayerThreat,

	RuleNewDevice:             LayerBehavioral,
	RuleGeoMismatch:           LayerBehavioral,
	RuleSessionTooYoung:       LayerBehavioral,
	RuleAccountTooNew:         LayerBehavioral,
	RuleLowMerchantReputation: LayerBehavioral,
	RuleHighRefundRate:        LayerBehavioral,
	RuleLowConfidence:         LayerBehavioral,
}

// Severity labels map to weights: critical 1.0, high 0.7, medium 0.4, low 0.2.
const (
	SeverityCritical = 1.0
	SeverityHigh     = 0.7
	SeverityMedium   = 0.4
	SeverityLow      = 0.2
)

func defaultWeights() map[RuleID]float64 {
	return map[RuleID]float64{
		RuleIntentIncomplete:    SeverityCritical,
		RuleContextIncomplete:   SeverityCritical,
		RuleMerchantInvalid:     SeverityCritical,
		RuleAmountLimitExceeded: SeverityCritical,
		RuleDailyLimitExceeded:  SeverityCritical,
		RuleInsufficientBalance: SeverityCritical,

		RuleVelocityLimit:     SeverityMedium,
		RuleRapidRepeatAmount: SeverityMedium,
		RuleIntentSplitting:   SeverityHigh,
		RuleUnusualHour:       SeverityLow,

		RuleIntentReplay:     SeverityCritical,
		RuleConsentReuse:     SeverityCritical,
		RuleIntentTampered:   SeverityCritical,
		RuleSessionUntrusted: SeverityCritical,

		RuleNewDevice:             SeverityHigh,
		RuleGeoMismatch:           SeverityMedium,
		RuleSessionTooYoung:       SeverityLow,
		RuleAccountTooNew:         SeverityMedium,
		RuleLowMerchantReputation: SeverityHigh,
		RuleHighRefundRate:        SeverityMedium,
		RuleLowConfidence:         SeverityHigh,
	}
}

// LayerOf returns the layer of a built-in rule. Operator rules are layer 4.
func LayerOf(id RuleID) Layer {
	if l, ok := builtinLayers[id]; ok {
		return l
	}
	return LayerBehavioral
}
