package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/scheduler/internal/telemetry"
)

// Gap is an uncovered time range within working hours not yet backed by any
// slot.
type Gap struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Gaps computes the uncovered ranges between existing slots and the working
// day boundary: before the first slot, between consecutive slots, and after
// the last one. With no slots the whole day is a single gap.
func Gaps(slots []Slot, dayStart, dayEnd TimeOfDay) []Gap {
	if dayStart >= dayEnd {
		return nil
	}
	if len(slots) == 0 {
		return []Gap{{Start: dayStart, End: dayEnd}}
	}

	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var gaps []Gap
	if sorted[0].Start > dayStart {
		gaps = append(gaps, Gap{Start: dayStart, End: sorted[0].Start})
	}

	cursor := sorted[0].End
	for _, s := range sorted[1:] {
		if s.Start > cursor {
			gaps = append(gaps, Gap{Start: cursor, End: s.Start})
		}
		if s.End > cursor {
			cursor = s.End
		}
	}

	if cursor < dayEnd {
		gaps = append(gaps, Gap{Start: cursor, End: dayEnd})
	}
	return gaps
}

// CandidateSlots walks each gap in steps of the shortest configured duration
// and emits one candidate interval per step position and per duration that
// still fits before the gap closes, deduplicated by (start, end).
func CandidateSlots(gaps []Gap, durationsMin []int) []Gap {
	step := minDuration(durationsMin)
	if step <= 0 {
		return nil
	}

	seen := make(map[Gap]struct{})
	var out []Gap
	for _, g := range gaps {
		for start := g.Start; start < g.End; start = start.Add(step) {
			for _, d := range durationsMin {
				if d <= 0 {
					continue
				}
				end := start.Add(d)
				if end > g.End {
					continue
				}
				c := Gap{Start: start, End: end}
				if _, dup := seen[c]; dup {
					continue
				}
				seen[c] = struct{}{}
				out = append(out, c)
			}
		}
	}
	return out
}

func minDuration(durationsMin []int) int {
	min := 0
	for _, d := range durationsMin {
		if d <= 0 {
			continue
		}
		if min == 0 || d < min {
			min = d
		}
	}
	return min
}

// Replenish recomputes the gaps in a merchant's day and materializes fresh
// candidate slots inside them, skipping any (start, end) pair that already
// exists. It is invoked in the background after schedule mutations and
// periodically by the gap-fill worker; the batch insert ignores rows another
// run materialized first.
func (s *Service) Replenish(ctx context.Context, merchantID uuid.UUID, date time.Time) (int, error) {
	date = NormalizeDate(date)

	cfg, err := s.store.GetScheduleConfig(ctx, merchantID)
	if err != nil {
		return 0, fmt.Errorf("load schedule config: %w", err)
	}
	if len(cfg.DurationsMin) == 0 {
		return 0, nil
	}

	existing, err := s.store.ListSlots(ctx, merchantID, date, SlotFilter{})
	if err != nil {
		return 0, fmt.Errorf("list slots: %w", err)
	}

	covered := make(map[Gap]struct{}, len(existing))
	for _, sl := range existing {
		covered[Gap{Start: sl.Start, End: sl.End}] = struct{}{}
	}

	candidates := CandidateSlots(Gaps(existing, cfg.DayStart, cfg.DayEnd), cfg.DurationsMin)

	now := s.now()
	batch := make([]Slot, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := covered[c]; dup {
			continue
		}
		batch = append(batch, Slot{
			ID:          uuid.New(),
			MerchantID:  merchantID,
			Date:        date,
			Start:       c.Start,
			End:         c.End,
			DurationMin: int(c.End - c.Start),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if len(batch) == 0 {
		return 0, nil
	}

	inserted, err := s.store.InsertSlots(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("insert slots: %w", err)
	}

	telemetry.GapFillSlots.Add(float64(inserted))
	return inserted, nil
}
