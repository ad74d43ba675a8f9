// Package main is the entry point for the Ringi approval workflow server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ringihq/ringi/internal/config"
	"github.com/ringihq/ringi/internal/definition"
	"github.com/ringihq/ringi/internal/dispatch"
	"github.com/ringihq/ringi/internal/idempotency"
	"github.com/ringihq/ringi/internal/ledger"
	"github.com/ringihq/ringi/internal/notify"
	"github.com/ringihq/ringi/internal/observability"
	"github.com/ringihq/ringi/internal/transport"
	"github.com/ringihq/ringi/internal/workflow"
	"github.com/ringihq/ringi/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "ringi", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load workflow definitions, validate, build registry.
	// Built-in workflows register first; file definitions override by type.
	defs := definition.Builtin()
	if len(cfg.Definitions.Directories) > 0 {
		loader := definition.NewLoader()
		fileDefs, err := loader.LoadAll(cfg.Definitions.Directories)
		if err != nil {
			logger.Error("definition loading failed", zap.Error(err))
			return 1
		}
		defs = mergeDefinitions(defs, fileDefs)
	}

	validator := definition.NewValidator()
	verrs := validator.Validate(defs)
	if len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		return 1
	}

	registry := definition.NewRegistry(defs)
	metrics.SetDefinitionsLoaded(float64(registry.Len()))

	// Step 5: Initialize process store.
	store, storeCloser, err := buildProcessStore(ctx, cfg.Workflow.Store, logger)
	if err != nil {
		logger.Error("process store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Initialize the idempotency guard backing monthly closings.
	guard, guardCloser, err := buildIdempotencyGuard(ctx, cfg.Idempotency, logger)
	if err != nil {
		logger.Error("idempotency guard initialization failed", zap.Error(err))
		return 1
	}

	// Step 7: Build the ledger gateway and wire dispatch handlers to it.
	gateway := ledger.NewMemoryGateway(guard, logger)

	dispatcher := dispatch.NewRegistry(logger)
	dispatcher.Register("expense_approval", func(ctx context.Context, processID string, payload map[string]any) error {
		_, err := gateway.RegisterExpense(ctx, processID, payload)
		if err == nil {
			metrics.RecordLedgerRecord("expense")
		}
		return err
	})
	dispatcher.Register("contract_approval", func(ctx context.Context, processID string, payload map[string]any) error {
		_, err := gateway.RegisterContract(ctx, processID, payload)
		if err == nil {
			metrics.RecordLedgerRecord("contract")
		}
		return err
	})

	// Step 8: Build the workflow engine.
	engine := workflow.NewEngine(registry, store, dispatcher,
		workflow.WithLogger(logger),
		workflow.WithNotifier(notify.NewLogNotifier(logger)),
		workflow.WithMetrics(metrics),
	)

	// Step 9: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return registry.Len() > 0 },
	}
	if hc, ok := store.(observability.HealthChecker); ok {
		readinessChecks.ProcessStore = hc
	}
	if hc, ok := guard.(observability.HealthChecker); ok {
		readinessChecks.IdempotencyStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Engine:  engine,
		Ledger:  gateway,
		Metrics: metrics,
		Checks:  readinessChecks,
	})

	srv := transport.Server(cfg, router)

	// Step 10: Start background tasks.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	if cfg.Closing.Enabled {
		go runClosingScheduler(bgCtx, gateway, metrics, cfg.Closing.CheckInterval, logger)
	}

	// Step 11: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("definitions", registry.Len()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks.
	bgCancel()

	// Close stores.
	if storeCloser != nil {
		storeCloser()
	}
	if guardCloser != nil {
		guardCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// mergeDefinitions overlays file definitions on the built-in set. A file
// definition with the same workflow type replaces the built-in one.
func mergeDefinitions(builtin, overrides []model.WorkflowDefinition) []model.WorkflowDefinition {
	byType := make(map[string]int, len(builtin))
	merged := make([]model.WorkflowDefinition, len(builtin))
	copy(merged, builtin)
	for i, d := range merged {
		byType[d.Type] = i
	}
	for _, d := range overrides {
		if i, ok := byType[d.Type]; ok {
			merged[i] = d
		} else {
			merged = append(merged, d)
		}
	}
	return merged
}

// buildProcessStore creates the process store based on config.
func buildProcessStore(ctx context.Context, cfg config.WorkflowStoreConfig, logger *zap.Logger) (workflow.ProcessStore, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory process store")
		return workflow.NewMemoryProcessStore(), nil, nil
	case "postgres", "":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			logger.Warn("process store DSN not configured, using in-memory store",
				zap.String("dsn_env", cfg.DSNEnv))
			return workflow.NewMemoryProcessStore(), nil, nil
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("process store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("process store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("process store: ping: %w", err)
		}

		logger.Info("using postgres process store")
		return workflow.NewPgProcessStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported process store driver: %q", cfg.Driver)
	}
}

// buildIdempotencyGuard creates the run-once guard based on config.
func buildIdempotencyGuard(ctx context.Context, cfg config.IdempotencyConfig, logger *zap.Logger) (idempotency.Guard, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory idempotency guard")
		return idempotency.NewMemoryGuard(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			logger.Warn("redis address not configured, using in-memory idempotency guard",
				zap.String("addr_env", cfg.AddrEnv))
			return idempotency.NewMemoryGuard(), nil, nil
		}

		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("idempotency guard: ping redis: %w", err)
		}

		logger.Info("using redis idempotency guard", zap.String("addr", addr))
		return idempotency.NewRedisGuard(client), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported idempotency driver: %q", cfg.Driver)
	}
}

// runClosingScheduler periodically closes the previous billing period. The
// idempotency guard makes repeated runs for the same period no-ops, so the
// interval only bounds how soon after month end the closing happens.
func runClosingScheduler(ctx context.Context, gateway ledger.Gateway, metrics *observability.Metrics, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			period := time.Now().UTC().AddDate(0, -1, 0).Format("2006-01")
			if _, err := gateway.CloseMonth(ctx, period); err != nil {
				metrics.RecordClosingRun("error")
				logger.Error("monthly closing failed", zap.String("period", period), zap.Error(err))
				continue
			}
			metrics.RecordClosingRun("ok")
			logger.Info("monthly closing completed", zap.String("period", period))
		}
	}
}
