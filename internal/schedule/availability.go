package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/scheduler/internal/telemetry"
)

// EligibleWorkers returns the workers free to serve [t, t+duration) given the
// day's unavailability windows and already-booked slots. Pure and
// deterministic: identical inputs always yield identical output, in roster
// order. Inactive workers are never eligible.
func EligibleWorkers(t TimeOfDay, durationMin int, workers []Worker, windows []UnavailabilityWindow, booked []Slot) []Worker {
	end := t.Add(durationMin)

	var eligible []Worker
	for _, w := range workers {
		if !w.Active {
			continue
		}
		if workerBusy(w.ID, t, end, windows, booked) {
			continue
		}
		eligible = append(eligible, w)
	}
	return eligible
}

func workerBusy(workerID uuid.UUID, start, end TimeOfDay, windows []UnavailabilityWindow, booked []Slot) bool {
	for _, s := range booked {
		if s.WorkerID == nil || *s.WorkerID != workerID {
			continue
		}
		if intervalsOverlap(start, end, s.Start, s.End) {
			return true
		}
	}
	for _, u := range windows {
		if u.WorkerID != workerID {
			continue
		}
		if intervalsOverlap(start, end, u.Start, u.End) {
			return true
		}
	}
	return false
}

// GetAvailableSlots computes the externally visible availability grid for a
// merchant, date and service duration: every candidate time point with at
// least one eligible worker. Results are memoized for the day-grid TTL.
func (s *Service) GetAvailableSlots(ctx context.Context, merchantID uuid.UUID, date time.Time, durationMin int) ([]TimePoint, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	date = NormalizeDate(date)

	if points, ok := s.cache.GetDayGrid(ctx, merchantID, date, durationMin); ok {
		telemetry.CacheLookups.WithLabelValues("day", "hit").Inc()
		return points, nil
	}
	telemetry.CacheLookups.WithLabelValues("day", "miss").Inc()

	cfg, err := s.store.GetScheduleConfig(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("load schedule config: %w", err)
	}

	day, err := s.loadDay(ctx, merchantID, date)
	if err != nil {
		return nil, err
	}

	points := s.resolveGrid(cfg, date, durationMin, day)

	s.cache.SetDayGrid(ctx, merchantID, date, durationMin, points)
	return points, nil
}

// WorkerFreeAt resolves eligibility for a single time point. It serves the
// windowed query shape and is memoized under the shorter window TTL.
func (s *Service) WorkerFreeAt(ctx context.Context, merchantID uuid.UUID, date time.Time, t TimeOfDay, durationMin int) ([]WorkerSummary, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	date = NormalizeDate(date)

	if workers, ok := s.cache.GetWindow(ctx, merchantID, date, t, durationMin); ok {
		telemetry.CacheLookups.WithLabelValues("window", "hit").Inc()
		return workers, nil
	}
	telemetry.CacheLookups.WithLabelValues("window", "miss").Inc()

	day, err := s.loadDay(ctx, merchantID, date)
	if err != nil {
		return nil, err
	}

	var summaries []WorkerSummary
	if s.offerable(date, t) {
		for _, w := range EligibleWorkers(t, durationMin, day.workers, day.windows, day.booked) {
			summaries = append(summaries, summarize(w))
		}
	}

	s.cache.SetWindow(ctx, merchantID, date, t, durationMin, summaries)
	return summaries, nil
}

// daySchedule is the live-store state the resolver works from.
type daySchedule struct {
	workers []Worker
	windows []UnavailabilityWindow
	booked  []Slot
}

func (s *Service) loadDay(ctx context.Context, merchantID uuid.UUID, date time.Time) (*daySchedule, error) {
	workers, err := s.store.ListWorkers(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.ID)
	}

	windows, err := s.store.ListUnavailability(ctx, ids, date)
	if err != nil {
		return nil, fmt.Errorf("list unavailability: %w", err)
	}

	booked, err := s.store.ListSlots(ctx, merchantID, date, SlotFilter{OnlyBooked: true})
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	return &daySchedule{workers: workers, windows: windows, booked: booked}, nil
}

func (s *Service) resolveGrid(cfg *ScheduleConfig, date time.Time, durationMin int, day *daySchedule) []TimePoint {
	var points []TimePoint
	for _, t := range BuildGrid(cfg.DayStart, cfg.DayEnd, cfg.IntervalMin) {
		if t.Add(durationMin) > cfg.DayEnd {
			break
		}
		if !s.offerable(date, t) {
			continue
		}
		eligible := EligibleWorkers(t, durationMin, day.workers, day.windows, day.booked)
		if len(eligible) == 0 {
			continue
		}
		summaries := make([]WorkerSummary, 0, len(eligible))
		for _, w := range eligible {
			summaries = append(summaries, summarize(w))
		}
		points = append(points, TimePoint{Time: t, Workers: summaries})
	}
	return points
}

// offerable reports whether a time point may still be offered: slots in the
// past, or at the current minute of today, are never offered.
func (s *Service) offerable(date time.Time, t TimeOfDay) bool {
	now := s.now()
	if !SameDate(date, now) {
		return true
	}
	return t > MinuteOfDay(now.UTC())
}
