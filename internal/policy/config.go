package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the operator-facing policy document. Amounts are strings so YAML
// never rounds them through float64.
type Config struct {
	Version          string             `yaml:"version"`
	Limits           LimitsConfig       `yaml:"limits"`
	Velocity         VelocityConfig     `yaml:"velocity"`
	Drain            DrainConfig        `yaml:"drain"`
	Splitting        SplittingConfig    `yaml:"splitting"`
	Temporal         TemporalConfig     `yaml:"temporal"`
	Behavioral       BehavioralConfig   `yaml:"behavioral"`
	Weights          map[RuleID]float64 `yaml:"weights"`
	EscalateSeverity float64            `yaml:"escalate_severity"`
	CustomRules      []CustomRuleConfig `yaml:"custom_rules"`
}

type LimitsConfig struct {
	PerTransaction string `yaml:"per_transaction"`
	Daily          string `yaml:"daily"`
}

type VelocityConfig struct {
	Window          time.Duration `yaml:"window"`
	MaxTransactions int           `yaml:"max_transactions"`
}

type DrainConfig struct {
	Window    time.Duration `yaml:"window"`
	Tolerance string        `yaml:"tolerance"`
	MinCount  int           `yaml:"min_count"`
}

type SplittingConfig struct {
	Window    time.Duration `yaml:"window"`
	Tolerance string        `yaml:"tolerance"`
	MinParts  int           `yaml:"min_parts"`
}

type TemporalConfig struct {
	MinSamples int `yaml:"min_samples"`
}

type BehavioralConfig struct {
	NewDeviceLimit        string        `yaml:"new_device_limit"`
	MinSessionAge         time.Duration `yaml:"min_session_age"`
	MinAccountAgeDays     int           `yaml:"min_account_age_days"`
	MinMerchantReputation float64       `yaml:"min_merchant_reputation"`
	MaxRefundRate         float64       `yaml:"max_refund_rate"`
	MinConfidence         float64       `yaml:"min_confidence"`
}

// CustomRuleConfig is an operator-defined CEL rule evaluated in layer 4.
type CustomRuleConfig struct {
	ID         RuleID  `yaml:"id"`
	Expression string  `yaml:"expression"`
	Severity   float64 `yaml:"severity"`
}

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		Version: "1.0.0",
		Limits: LimitsConfig{
			PerTransaction: "500",
			Daily:          "2000",
		},
		Velocity: VelocityConfig{
			Window:          5 * time.Minute,
			MaxTransactions: 10,
		},
		Drain: DrainConfig{
			Window:    2 * time.Minute,
			Tolerance: "1",
			MinCount:  3,
		},
		Splitting: SplittingConfig{
			Window:    10 * time.Minute,
			Tolerance: "1",
			MinParts:  2,
		},
		Temporal: TemporalConfig{MinSamples: 20},
		Behavioral: BehavioralConfig{
			NewDeviceLimit:        "200",
			MinSessionAge:         time.Minute,
			MinAccountAgeDays:     7,
			MinMerchantReputation: 0.3,
			MaxRefundRate:         0.3,
			MinConfidence:         0.7,
		},
		Weights:          defaultWeights(),
		EscalateSeverity: 0.6,
	}
}

// LoadFile reads a YAML policy from path. Fields absent from the file keep
// their defaults.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy over the defaults and compiles it.
func Parse(data []byte) (*Policy, error) {
	cfg := DefaultConfig()
	// weights from the file replace individual defaults, not the whole table
	defaults := cfg.Weights
	cfg.Weights = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	for id, w := range cfg.Weights {
		defaults[id] = w
	}
	cfg.Weights = defaults
	return Compile(cfg)
}

// Policy is a validated, compiled Config ready for evaluation.
type Policy struct {
	version        string
	perTxnCap      decimal.Decimal
	dailyCap       decimal.Decimal
	drainTolerance decimal.Decimal
	splitTolerance decimal.Decimal
	newDeviceLimit decimal.Decimal
	weights        map[RuleID]float64
	custom         []customRule
	cfg            Config
}

// Compile validates cfg and prepares it for evaluation.
func Compile(cfg Config) (*Policy, error) {
	v, err := semver.StrictNewVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("policy version %q: %w", cfg.Version, err)
	}

	p := &Policy{
		version: v.String(),
		weights: make(map[RuleID]float64, len(builtinLayers)),
		cfg:     cfg,
	}

	amounts := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"limits.per_transaction", cfg.Limits.PerTransaction, &p.perTxnCap},
		{"limits.daily", cfg.Limits.Daily, &p.dailyCap},
		{"drain.tolerance", cfg.Drain.Tolerance, &p.drainTolerance},
		{"splitting.tolerance", cfg.Splitting.Tolerance, &p.splitTolerance},
		{"behavioral.new_device_limit", cfg.Behavioral.NewDeviceLimit, &p.newDeviceLimit},
	}
	for _, a := range amounts {
		d, err := decimal.NewFromString(a.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.name, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("%s must not be negative", a.name)
		}
		*a.dst = d
	}

	switch {
	case cfg.Velocity.Window <= 0 || cfg.Drain.Window <= 0 || cfg.Splitting.Window <= 0:
		return nil, errors.New("policy windows must be positive")
	case cfg.Velocity.MaxTransactions < 1 || cfg.Drain.MinCount < 2 || cfg.Splitting.MinParts < 2:
		return nil, errors.New("policy counts out of range")
	case cfg.EscalateSeverity <= 0 || cfg.EscalateSeverity > 1:
		return nil, errors.New("escalate_severity must be in (0,1]")
	}

	for id := range builtinLayers {
		w, ok := cfg.Weights[id]
		if !ok {
			return nil, fmt.Errorf("policy weights: missing weight for %s", id)
		}
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("policy weights: %s weight %v out of [0,1]", id, w)
		}
		p.weights[id] = w
	}
	for id := range cfg.Weights {
		if _, ok := builtinLayers[id]; !ok {
			return nil, fmt.Errorf("policy weights: unknown rule id %q", id)
		}
	}

	custom, err := compileCustomRules(cfg.CustomRules)
	if err != nil {
		return nil, err
	}
	p.custom = custom
	return p, nil
}

// MustDefault compiles DefaultConfig and panics on error. For tests and main.
func MustDefault() *Policy {
	p, err := Compile(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return p
}

// Version returns the normalized semantic version of the policy.
func (p *Policy) Version() string {
	return p.version
}

// Config returns a copy of the source configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Weight returns the configured severity of a rule.
func (p *Policy) Weight(id RuleID) float64 {
	if w, ok := p.weights[id]; ok {
		return w
	}
	for _, c := range p.custom {
		if c.id == id {
			return c.severity
		}
	}
	return 0
}
