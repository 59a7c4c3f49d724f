package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trash4cash/internal/auth"
	"trash4cash/internal/console"
	"trash4cash/internal/console/handler"
	"trash4cash/internal/dialog"
	"trash4cash/internal/gateway"
	"trash4cash/internal/platform/config"
	"trash4cash/internal/platform/health"
	"trash4cash/internal/platform/logger"
	"trash4cash/internal/platform/metrics"
	"trash4cash/internal/platform/middleware"
	"trash4cash/internal/platform/redis"
	"trash4cash/internal/querycache"
	"trash4cash/pkg/platform/circuit"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires the console: config, backend gateway, session store, per-session
// workspaces and the HTTP API. Domain logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing trash4cash console",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"backend_url", cfg.BackendURL,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	healthHandler := health.New(cfg.Environment)

	breaker := circuit.New("backend",
		circuit.WithFailureThreshold(cfg.BreakerThreshold),
		circuit.WithCooldown(cfg.BreakerCooldown),
	)
	healthHandler.RegisterCheck("backend", health.BreakerCheck(breaker))

	var api *handler.Handler
	client := gateway.New(cfg.BackendURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithBreaker(breaker),
		gateway.WithMetrics(gateway.NewMetrics(reg)),
		gateway.WithLogger(log),
		gateway.WithUnauthorizedHook(func(ctx context.Context) {
			api.OnUnauthorized(ctx)
		}),
	)

	store, closeStore, err := tokenStore(ctx, cfg.Redis, reg, healthHandler, log)
	if err != nil {
		return err
	}
	defer closeStore()

	sessionMetrics := metrics.New(reg)
	authSvc := auth.NewService(store, client,
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithMetrics(sessionMetrics),
		auth.WithLogger(log),
	)
	manager := console.NewManager(client, authSvc,
		console.WithStaleTime(cfg.CacheStaleTime),
		console.WithDefaultLimit(cfg.DefaultLimit),
		console.WithServerSearch(cfg.ServerSearch),
		console.WithCacheMetrics(querycache.NewMetrics(reg)),
		console.WithDialogMetrics(dialog.NewMetrics(reg)),
		console.WithSessionMetrics(sessionMetrics),
		console.WithLogger(log),
	)
	api = handler.New(authSvc, manager, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(middleware.NewMetrics(reg)))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	r.Use(middleware.ContentType)

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	api.Register(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// tokenStore keeps sessions in Redis when a URL is configured so they survive
// restarts, and in memory otherwise.
func tokenStore(
	ctx context.Context,
	cfg config.RedisConfig,
	reg prometheus.Registerer,
	healthHandler *health.Handler,
	log *slog.Logger,
) (auth.TokenStore, func(), error) {
	client, err := redis.New(ctx, cfg, redis.NewPoolMetrics(reg))
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Info("using in-memory session store")
		return auth.NewInMemoryTokenStore(), func() {}, nil
	}

	healthHandler.RegisterCheck("redis", client.Health)

	statsCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(poolStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-statsCtx.Done():
				return
			case <-ticker.C:
				client.RecordPoolStats()
			}
		}
	}()

	log.Info("using redis session store")
	return auth.NewRedisTokenStore(client.Client), func() {
		cancel()
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}, nil
}
