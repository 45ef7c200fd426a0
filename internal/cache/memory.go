package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/scheduler/internal/schedule"
)

// Memory is an in-process AvailabilityCache for deployments without redis
// and for tests. Entries expire lazily on lookup; a purge walks the key
// prefix the same way the redis variant does.
type Memory struct {
	dayGridTTL time.Duration
	windowTTL  time.Duration
	now        func() time.Time

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value    any
	deadline time.Time
}

var _ schedule.AvailabilityCache = (*Memory)(nil)

func NewMemory(dayGridTTL, windowTTL time.Duration) *Memory {
	if dayGridTTL <= 0 {
		dayGridTTL = DefaultDayGridTTL
	}
	if windowTTL <= 0 {
		windowTTL = DefaultWindowTTL
	}
	return &Memory{
		dayGridTTL: dayGridTTL,
		windowTTL:  windowTTL,
		now:        time.Now,
		entries:    make(map[string]memoryEntry),
	}
}

func (c *Memory) GetDayGrid(_ context.Context, merchantID uuid.UUID, date time.Time, durationMin int) ([]schedule.TimePoint, bool) {
	v, ok := c.get(gridKey(merchantID, date, durationMin))
	if !ok {
		return nil, false
	}
	points, ok := v.([]schedule.TimePoint)
	return points, ok
}

func (c *Memory) SetDayGrid(_ context.Context, merchantID uuid.UUID, date time.Time, durationMin int, points []schedule.TimePoint) {
	c.set(gridKey(merchantID, date, durationMin), points, c.dayGridTTL)
}

func (c *Memory) GetWindow(_ context.Context, merchantID uuid.UUID, date time.Time, t schedule.TimeOfDay, durationMin int) ([]schedule.WorkerSummary, bool) {
	v, ok := c.get(windowKey(merchantID, date, t, durationMin))
	if !ok {
		return nil, false
	}
	workers, ok := v.([]schedule.WorkerSummary)
	return workers, ok
}

func (c *Memory) SetWindow(_ context.Context, merchantID uuid.UUID, date time.Time, t schedule.TimeOfDay, durationMin int, workers []schedule.WorkerSummary) {
	c.set(windowKey(merchantID, date, t, durationMin), workers, c.windowTTL)
}

func (c *Memory) PurgeDate(_ context.Context, merchantID uuid.UUID, date time.Time) {
	prefix := strings.TrimSuffix(datePattern(merchantID, date), "*")

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *Memory) get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !c.now().Before(e.deadline) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

func (c *Memory) set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, deadline: c.now().Add(ttl)}
}
