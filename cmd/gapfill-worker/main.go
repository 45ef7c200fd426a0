package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/slotwise/scheduler/internal/cache"
	"github.com/slotwise/scheduler/internal/config"
	"github.com/slotwise/scheduler/internal/db"
	"github.com/slotwise/scheduler/internal/logging"
	redisclient "github.com/slotwise/scheduler/internal/redis"
	"github.com/slotwise/scheduler/internal/schedule"
)

// The worker keeps merchant schedules replenished independently of booking
// traffic: a periodic sweep covers today and tomorrow, and a nightly cron
// materializes the next day's slots from working hours before opening time.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Setup("dev")
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.Setup(cfg.Env).With().Str("component", "gapfill_worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("gapfill-worker starting up")

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

	var availCache schedule.AvailabilityCache = schedule.NopCache{}
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, availability cache will not be purged")
	} else {
		defer rdb.Close()
		availCache = cache.NewRedis(rdb, cache.Config{
			DayGridTTL:     cfg.DayGridCacheTTL,
			WindowTTL:      cfg.WindowCacheTTL,
			DisableOnError: true,
		}, logger)
	}

	store := schedule.NewPgStore(pgPool)
	svc := schedule.NewService(store, availCache, logger, schedule.Options{
		DefaultStrategy: schedule.StrategyName(cfg.DefaultStrategy),
		GapFillTimeout:  cfg.GapFillTimeout,
	})

	// Nightly pass for the day after, so the morning grid is ready before
	// the first availability query arrives.
	nightly := cron.New()
	if _, err := nightly.AddFunc("30 3 * * *", func() {
		runSweep(rootCtx, svc, store, availCache, logger, 1, 2)
	}); err != nil {
		logger.Fatal().Err(err).Msg("invalid cron schedule")
	}
	nightly.Start()
	defer nightly.Stop()

	// Sweep today and tomorrow at startup, then on the configured interval.
	runSweep(rootCtx, svc, store, availCache, logger, 0, 2)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping gapfill worker")
			return
		case <-ticker.C:
			runSweep(rootCtx, svc, store, availCache, logger, 0, 2)
		}
	}
}

// runSweep replenishes every merchant's schedule for day offsets
// [fromOffset, toOffset) relative to today.
func runSweep(ctx context.Context, svc *schedule.Service, store schedule.Store, availCache schedule.AvailabilityCache, logger zerolog.Logger, fromOffset, toOffset int) {
	runCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	start := time.Now()
	configs, err := store.ListScheduleConfigs(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("list schedule configs failed")
		return
	}

	total := 0
	for _, cfg := range configs {
		for offset := fromOffset; offset < toOffset; offset++ {
			date := schedule.NormalizeDate(time.Now().AddDate(0, 0, offset))
			inserted, err := svc.Replenish(runCtx, cfg.MerchantID, date)
			if err != nil {
				logger.Error().Err(err).
					Stringer("merchant_id", cfg.MerchantID).
					Str("date", date.Format("2006-01-02")).
					Msg("replenish failed")
				continue
			}
			if inserted > 0 {
				availCache.PurgeDate(runCtx, cfg.MerchantID, date)
				total += inserted
			}
		}
	}

	logger.Info().
		Int("merchants", len(configs)).
		Int("slots_inserted", total).
		Dur("took", time.Since(start)).
		Msg("gapfill sweep complete")
}
