// Package httptransport is the thin HTTP layer over the router and ledger.
// Handlers decode, delegate and translate errors; no decision logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payguard/internal/platform/metrics"
	"payguard/internal/platform/middleware"
	"payguard/pkg/platform/httputil"
	"payguard/pkg/platform/middleware/admin"
	"payguard/pkg/platform/middleware/metadata"
	"payguard/pkg/platform/middleware/requesttime"
	"payguard/pkg/platform/middleware/throttle"
)

const requestTimeout = 30 * time.Second

// Handler wires the /v1 endpoints to the domain services.
type Handler struct {
	intents    IntentService
	ledger     LedgerReader
	adminToken string
	logger     *slog.Logger
}

// New constructs a handler with its dependencies. adminToken guards the
// collaborator callbacks and the ledger; an empty token closes those routes.
func New(intents IntentService, audit LedgerReader, adminToken string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{intents: intents, ledger: audit, adminToken: adminToken, logger: logger}
}

// Register mounts the /v1 endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(chimw.Timeout(requestTimeout))

		requireAdmin := admin.RequireAdminToken(h.adminToken, h.logger)

		v1.Group(func(g chi.Router) {
			g.Use(middleware.ContentTypeJSON)
			g.With(middleware.RequirePrincipal(h.logger)).Post("/intents", h.handleSubmit)
			g.With(requireAdmin).Post("/intents/{intentID}/escalation", h.handleResolveEscalation)
			g.With(requireAdmin).Post("/intents/{intentID}/reauth", h.handleCompleteReauth)
			g.Post("/execute", h.handleExecute)
		})
		v1.Get("/intents/{intentID}", h.handleGet)
		v1.Group(func(g chi.Router) {
			g.Use(requireAdmin)
			g.Get("/ledger", h.handleLedgerRead)
			g.Get("/ledger/verify", h.handleLedgerVerify)
		})
	})
}

// HealthCheck is run by GET /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterConfig carries the process-wide pieces of the HTTP surface.
type RouterConfig struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Limiter  *throttle.Limiter
	Gatherer prometheus.Gatherer
	Health   []HealthCheck
}

// NewRouter builds the full HTTP surface: shared middleware, health, metrics
// and the /v1 API.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = h.logger
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(requesttime.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(middleware.Principal)

	r.Get("/healthz", healthz(cfg.Health))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(api chi.Router) {
		if cfg.Limiter != nil {
			api.Use(cfg.Limiter.Middleware)
		}
		h.Register(api)
	})
	return r
}

func healthz(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				status[c.Name] = err.Error()
				code = http.StatusServiceUnavailable
				continue
			}
			status[c.Name] = "ok"
		}
		httputil.WriteJSON(w, code, map[string]any{
			"status": http.StatusText(code),
			"checks": status,
		})
	}
}
