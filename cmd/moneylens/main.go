package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneylens/internal/auth"
	"moneylens/internal/backend"
	"moneylens/internal/cache"
	"moneylens/internal/cli"
	"moneylens/internal/core"
	apphttp "moneylens/internal/http"
	applog "moneylens/internal/log"
	"moneylens/internal/metrics"
	"moneylens/internal/services"
	"moneylens/internal/stats"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.MustLoadConfig(logger, cli.RoleAPI)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(startCtx, backendCfg)
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New()

	statsCache := cache.NewLRUCache[core.Stats](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	cacheManager.Register(statsCache)
	cacheManager.StartCleanup(cfg.StatsCacheTTL)

	engine := stats.NewEngine(result.Store,
		stats.WithCache(statsCache),
		stats.WithMetrics(m),
		stats.WithLogger(logger.WithComponent(applog.ComponentStats).Slog()),
	)

	opts := []services.ExpenseServiceOption{
		services.WithServiceMetrics(m),
		services.WithServiceLogger(logger.WithComponent(applog.ComponentExpense).Slog()),
	}
	if result.Events != nil {
		opts = append(opts, services.WithPublisher(result.Events))
	}
	expenses := services.NewExpenseService(result.Store, engine, opts...)

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	users := services.NewUserService(result.Store, issuer)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               cfg.Addr(),
		FrontendURL:        cfg.FrontendURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		IdleTimeout:        cfg.IdleTimeout,
	}, apphttp.Deps{
		Expenses: expenses,
		Users:    users,
		Verifier: issuer,
		Pinger:   result.Store,
		Metrics:  m,
		Logger:   logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting MoneyLens API",
		"addr", cfg.Addr(),
		"backend", cfg.DataBackend,
		"events", result.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "addr", cfg.Addr())
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
