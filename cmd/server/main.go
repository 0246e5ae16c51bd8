package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"payguard/internal/consent"
	consentmetrics "payguard/internal/consent/metrics"
	"payguard/internal/ledger"
	ledgermetrics "payguard/internal/ledger/metrics"
	"payguard/internal/ledger/publish"
	"payguard/internal/platform/config"
	"payguard/internal/platform/httpserver"
	"payguard/internal/platform/logger"
	"payguard/internal/platform/metrics"
	"payguard/internal/policy"
	policymetrics "payguard/internal/policy/metrics"
	"payguard/internal/router"
	routermetrics "payguard/internal/router/metrics"
	httptransport "payguard/internal/transport/http"
	"payguard/pkg/platform/middleware/throttle"
)

// main wires config, storage and the services, then serves until SIGINT or
// SIGTERM. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("payguard stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pol := policy.MustDefault()
	if cfg.PolicyFile != "" {
		loaded, err := policy.LoadFile(cfg.PolicyFile)
		if err != nil {
			return err
		}
		pol = loaded
	}

	stores, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	ledgerMetrics := ledgermetrics.New()
	ledgerOpts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgerMetrics),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := publish.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.LedgerTopic,
			publish.WithLogger(log),
			publish.WithMetrics(ledgerMetrics),
		)
		if err != nil {
			return err
		}
		defer pub.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithPublisher(pub))
	}
	auditLedger, err := ledger.New(stores.ledger, ledgerOpts...)
	if err != nil {
		return err
	}

	secrets := make([][]byte, 0, len(cfg.Consent.Secrets))
	for _, s := range cfg.Consent.Secrets {
		secrets = append(secrets, []byte(s))
	}
	signer, err := consent.NewSigner(secrets...)
	if err != nil {
		return err
	}
	consentSvc, err := consent.NewService(signer, consent.NewInMemoryStore(), stores.spent,
		consent.WithTTL(cfg.Consent.TTL),
		consent.WithLogger(log),
		consent.WithMetrics(consentmetrics.New()),
	)
	if err != nil {
		return err
	}

	routerSvc, err := router.New(policy.NewEvaluator(pol), consentSvc, auditLedger, stores.velocity,
		router.WithCooldown(cfg.Router.Cooldown),
		router.WithLogger(log),
		router.WithMetrics(routermetrics.New()),
		router.WithPolicyMetrics(policymetrics.New()),
	)
	if err != nil {
		return err
	}

	limiter := throttle.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	handler := httptransport.NewRouter(httptransport.New(routerSvc, auditLedger, cfg.Server.AdminToken, log), httptransport.RouterConfig{
		Logger:   log,
		Metrics:  metrics.New(),
		Limiter:  limiter,
		Gatherer: prometheus.DefaultGatherer,
		Health:   stores.health,
	})
	srv := httpserver.New(cfg.Server.Addr, handler)

	log.InfoContext(ctx, "starting payguard",
		"addr", cfg.Server.Addr,
		"ledger_backend", cfg.Ledger.Backend,
		"policy_version", pol.Version(),
		"regulated_mode", cfg.Server.RegulatedMode,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	err = g.Wait()
	log.Info("payguard shut down")
	return err
}
