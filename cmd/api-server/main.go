package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slotwise/scheduler/internal/api"
	"github.com/slotwise/scheduler/internal/cache"
	"github.com/slotwise/scheduler/internal/config"
	"github.com/slotwise/scheduler/internal/db"
	"github.com/slotwise/scheduler/internal/logging"
	redisclient "github.com/slotwise/scheduler/internal/redis"
	"github.com/slotwise/scheduler/internal/schedule"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup("dev")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Setup(cfg.Env)
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Redis only backs the availability cache; the server runs degraded
	// without it rather than refusing to start.
	var availCache schedule.AvailabilityCache = schedule.NopCache{}
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without availability cache")
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		availCache = cache.NewRedis(rdb, cache.Config{
			DayGridTTL:     cfg.DayGridCacheTTL,
			WindowTTL:      cfg.WindowCacheTTL,
			DisableOnError: true,
		}, logger)
		logger.Info().Msg("connected to Redis")
	}

	store := schedule.NewPgStore(pgPool)
	svc := schedule.NewService(store, availCache, logger, schedule.Options{
		DefaultStrategy: schedule.StrategyName(cfg.DefaultStrategy),
		GapFillTimeout:  cfg.GapFillTimeout,
	})

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}

	logger.Info().Msg("api-server stopped")
}
