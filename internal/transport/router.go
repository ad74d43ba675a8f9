package transport

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ringihq/ringi/internal/config"
	"github.com/ringihq/ringi/internal/ledger"
	"github.com/ringihq/ringi/internal/observability"
	"github.com/ringihq/ringi/internal/workflow"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Engine  *workflow.Engine
	Ledger  ledger.Gateway
	Metrics *observability.Metrics
	Checks  observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// API middleware group.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Operational routes.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Checks))
	if deps.Config == nil || deps.Config.Observability.Metrics.Enabled {
		r.Get(metricsPath(deps.Config), observability.Handler().ServeHTTP)
	}

	// API routes.
	r.Group(func(r chi.Router) {
		if deps.Config != nil {
			r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		}
		r.Use(observability.TracingMiddleware)
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Post("/processes", handleProcessInitiate(deps.Engine))
		r.Get("/processes", handleProcessList(deps.Engine))
		r.Get("/processes/{processId}", handleProcessGet(deps.Engine))
		r.Get("/processes/{processId}/events", handleProcessEvents(deps.Engine))
		r.Post("/processes/{processId}/approve", handleProcessApprove(deps.Engine))
		r.Post("/processes/{processId}/reject", handleProcessReject(deps.Engine))
		r.Post("/processes/{processId}/retry-dispatch", handleProcessRetryDispatch(deps.Engine))

		r.Get("/dashboard", handleDashboard(deps.Ledger))
		r.Post("/closings/{period}", handleClosingRun(deps.Ledger))
		r.Get("/closings/{period}", handleClosingReport(deps.Ledger))
	})

	return r
}

func metricsPath(cfg *config.Config) string {
	if cfg != nil && cfg.Observability.Metrics.Path != "" {
		return cfg.Observability.Metrics.Path
	}
	return "/metrics"
}

// Server builds an http.Server around the router using the configured
// timeouts.
func Server(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
