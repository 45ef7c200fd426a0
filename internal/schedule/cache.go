package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AvailabilityCache memoizes resolver results for a short TTL. It is a pure
// read-path optimization: the booking path always re-validates against the
// live store, so a stale entry can never cause a double booking.
type AvailabilityCache interface {
	GetDayGrid(ctx context.Context, merchantID uuid.UUID, date time.Time, durationMin int) ([]TimePoint, bool)
	SetDayGrid(ctx context.Context, merchantID uuid.UUID, date time.Time, durationMin int, points []TimePoint)

	GetWindow(ctx context.Context, merchantID uuid.UUID, date time.Time, t TimeOfDay, durationMin int) ([]WorkerSummary, bool)
	SetWindow(ctx context.Context, merchantID uuid.UUID, date time.Time, t TimeOfDay, durationMin int, workers []WorkerSummary)

	// PurgeDate drops every entry for the merchant/date pair, regardless of
	// duration or time granularity.
	PurgeDate(ctx context.Context, merchantID uuid.UUID, date time.Time)
}

// NopCache disables memoization; every lookup is a miss.
type NopCache struct{}

func (NopCache) GetDayGrid(context.Context, uuid.UUID, time.Time, int) ([]TimePoint, bool) {
	return nil, false
}
func (NopCache) SetDayGrid(context.Context, uuid.UUID, time.Time, int, []TimePoint) {}
func (NopCache) GetWindow(context.Context, uuid.UUID, time.Time, TimeOfDay, int) ([]WorkerSummary, bool) {
	return nil, false
}
func (NopCache) SetWindow(context.Context, uuid.UUID, time.Time, TimeOfDay, int, []WorkerSummary) {}
func (NopCache) PurgeDate(context.Context, uuid.UUID, time.Time)                                  {}
