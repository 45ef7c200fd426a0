// Package cache provides the availability memoization layer: short-TTL
// entries keyed by merchant, date and query shape, purged wholesale per
// merchant/date on schedule mutations.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slotwise/scheduler/internal/schedule"
)

const (
	// DefaultDayGridTTL bounds staleness of full-day availability results.
	DefaultDayGridTTL = 30 * time.Second
	// DefaultWindowTTL bounds staleness of single time-point results.
	DefaultWindowTTL = 15 * time.Second

	keyPrefix = "sched:avail:"
)

// Config contains redis cache settings.
type Config struct {
	DayGridTTL time.Duration
	WindowTTL  time.Duration

	// DisableOnError stops consulting redis after an operational error; the
	// engine then recomputes every query until restart.
	DisableOnError bool
}

// Redis is the redis-backed AvailabilityCache. Failures degrade to cache
// misses; the cache is never a correctness mechanism.
type Redis struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

var _ schedule.AvailabilityCache = (*Redis)(nil)

func NewRedis(client *redis.Client, cfg Config, logger zerolog.Logger) *Redis {
	if cfg.DayGridTTL <= 0 {
		cfg.DayGridTTL = DefaultDayGridTTL
	}
	if cfg.WindowTTL <= 0 {
		cfg.WindowTTL = DefaultWindowTTL
	}
	return &Redis{
		client: client,
		logger: logger.With().Str("component", "availability_cache").Logger(),
		config: cfg,
	}
}

func dateKey(date time.Time) string {
	return date.UTC().Format("2006-01-02")
}

func gridKey(merchantID uuid.UUID, date time.Time, durationMin int) string {
	return fmt.Sprintf("%s%s:%s:grid:%d", keyPrefix, merchantID, dateKey(date), durationMin)
}

func windowKey(merchantID uuid.UUID, date time.Time, t schedule.TimeOfDay, durationMin int) string {
	return fmt.Sprintf("%s%s:%s:win:%d:%d", keyPrefix, merchantID, dateKey(date), int(t), durationMin)
}

func datePattern(merchantID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("%s%s:%s:*", keyPrefix, merchantID, dateKey(date))
}

func (c *Redis) GetDayGrid(ctx context.Context, merchantID uuid.UUID, date time.Time, durationMin int) ([]schedule.TimePoint, bool) {
	var points []schedule.TimePoint
	if !c.get(ctx, gridKey(merchantID, date, durationMin), &points) {
		return nil, false
	}
	return points, true
}

func (c *Redis) SetDayGrid(ctx context.Context, merchantID uuid.UUID, date time.Time, durationMin int, points []schedule.TimePoint) {
	c.set(ctx, gridKey(merchantID, date, durationMin), points, c.config.DayGridTTL)
}

func (c *Redis) GetWindow(ctx context.Context, merchantID uuid.UUID, date time.Time, t schedule.TimeOfDay, durationMin int) ([]schedule.WorkerSummary, bool) {
	var workers []schedule.WorkerSummary
	if !c.get(ctx, windowKey(merchantID, date, t, durationMin), &workers) {
		return nil, false
	}
	return workers, true
}

func (c *Redis) SetWindow(ctx context.Context, merchantID uuid.UUID, date time.Time, t schedule.TimeOfDay, durationMin int, workers []schedule.WorkerSummary) {
	c.set(ctx, windowKey(merchantID, date, t, durationMin), workers, c.config.WindowTTL)
}

// PurgeDate deletes every cached entry for the merchant/date pair. SCAN is
// used instead of KEYS so the purge never stalls redis.
func (c *Redis) PurgeDate(ctx context.Context, merchantID uuid.UUID, date time.Time) {
	if !c.available() {
		return
	}

	pattern := datePattern(merchantID, date)
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (c *Redis) available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Redis) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling availability cache due to redis error")
	}
}

func (c *Redis) get(ctx context.Context, key string, dest any) bool {
	if !c.available() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

func (c *Redis) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.available() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to marshal cache value")
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}
