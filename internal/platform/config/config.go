package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevConsentSecret is used when CONSENT_SECRET is unset. Regulated mode
// refuses to start with it.
const DevConsentSecret = "payguard-dev-consent-secret-change-me"

// DevAdminToken guards collaborator callbacks and ledger reads when
// ADMIN_API_TOKEN is unset. Regulated mode refuses to start with it.
const DevAdminToken = "payguard-dev-admin-token"

// Ledger backends.
const (
	LedgerMemory   = "memory"
	LedgerSQLite   = "sqlite"
	LedgerPostgres = "postgres"
)

// Config is the whole process configuration.
type Config struct {
	Server    Server
	Consent   Consent
	Router    Router
	Ledger    Ledger
	Redis     RedisConfig
	Kafka     Kafka
	RateLimit RateLimit
	LogLevel  string
	// PolicyFile is optional; the built-in default policy applies without it.
	PolicyFile string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	RegulatedMode   bool
	ShutdownTimeout time.Duration
	// AdminToken is the shared secret for escalation and reauth callbacks
	// and for ledger reads.
	AdminToken string
}

type Consent struct {
	// Secrets lists master secrets, newest first. Only the first signs.
	Secrets []string
	TTL     time.Duration
}

type Router struct {
	Cooldown time.Duration
}

type Ledger struct {
	Backend     string
	SQLitePath  string
	DatabaseURL string
}

// RedisConfig backs the spent-token set and the velocity history when URL
// is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers     []string
	LedgerTopic string
}

type RateLimit struct {
	RPS   float64
	Burst int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	e := env{get: getenv}
	cfg := Config{
		Server: Server{
			Addr:            e.str("PAYGUARD_ADDR", ":8080"),
			RegulatedMode:   e.boolean("REGULATED_MODE"),
			ShutdownTimeout: e.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:      e.str("ADMIN_API_TOKEN", DevAdminToken),
		},
		Consent: Consent{
			Secrets: e.list("CONSENT_SECRET", ""),
			TTL:     e.duration("CONSENT_TTL", 5*time.Minute),
		},
		Router: Router{
			Cooldown: e.duration("COOLDOWN_DURATION", 5*time.Minute),
		},
		Ledger: Ledger{
			Backend:     strings.ToLower(e.str("LEDGER_BACKEND", LedgerSQLite)),
			SQLitePath:  e.str("SQLITE_PATH", "payguard-ledger.db"),
			DatabaseURL: e.str("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:     e.list("KAFKA_BROKERS", ""),
			LedgerTopic: e.str("KAFKA_LEDGER_TOPIC", "payguard.ledger"),
		},
		RateLimit: RateLimit{
			RPS:   e.number("RATE_LIMIT_RPS", 20),
			Burst: e.integer("RATE_LIMIT_BURST", 40),
		},
		LogLevel:   e.str("LOG_LEVEL", "info"),
		PolicyFile: e.str("POLICY_FILE", ""),
	}
	if len(cfg.Consent.Secrets) == 0 {
		cfg.Consent.Secrets = []string{DevConsentSecret}
	}
	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the process cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch {
	case len(c.Consent.Secrets) == 0:
		errs = append(errs, errors.New("at least one consent secret is required"))
	case c.Server.RegulatedMode && c.Consent.Secrets[0] == DevConsentSecret:
		errs = append(errs, errors.New("REGULATED_MODE requires CONSENT_SECRET"))
	}
	switch {
	case c.Server.AdminToken == "":
		errs = append(errs, errors.New("an admin token is required"))
	case c.Server.RegulatedMode && c.Server.AdminToken == DevAdminToken:
		errs = append(errs, errors.New("REGULATED_MODE requires ADMIN_API_TOKEN"))
	}
	switch c.Ledger.Backend {
	case LedgerMemory:
		if c.Server.RegulatedMode {
			errs = append(errs, errors.New("REGULATED_MODE requires a durable ledger backend"))
		}
	case LedgerSQLite:
		if c.Ledger.SQLitePath == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=sqlite requires SQLITE_PATH"))
		}
	case LedgerPostgres:
		if c.Ledger.DatabaseURL == "" {
			errs = append(errs, errors.New("LEDGER_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.Ledger.Backend))
	}
	if c.Consent.TTL <= 0 || c.Router.Cooldown <= 0 {
		errs = append(errs, errors.New("CONSENT_TTL and COOLDOWN_DURATION must be positive"))
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// env reads typed values and keeps the first parse error.
type env struct {
	get func(string) string
	err error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) boolean(key string) bool {
	v := e.str(key, "false")
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return b
}

func (e *env) integer(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return n
}

func (e *env) number(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return d
}

// list splits a comma-separated value, dropping empty items.
func (e *env) list(key, def string) []string {
	var out []string
	for part := range strings.SplitSeq(e.str(key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *env) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}
