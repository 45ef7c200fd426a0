package schedule

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Strategy selects one worker from an eligible set. Implementations must
// return nil for an empty set, never an error or panic.
type Strategy interface {
	Pick(eligible []Worker, serviceName string) *Worker
}

// StrategyFor resolves a strategy name. Unknown names fall back to
// next-available so a bad merchant config can never break booking.
func StrategyFor(name StrategyName, log *assignmentLog) Strategy {
	switch name {
	case StrategyRoundRobin:
		return &roundRobin{log: log}
	case StrategySpecialty:
		return specialtyMatch{}
	default:
		return nextAvailable{}
	}
}

// nextAvailable picks the first eligible worker with a stable tie-break by
// worker id ascending, so the choice is deterministic and testable.
type nextAvailable struct{}

func (nextAvailable) Pick(eligible []Worker, _ string) *Worker {
	if len(eligible) == 0 {
		return nil
	}
	pick := eligible[0]
	for _, w := range eligible[1:] {
		if w.ID.String() < pick.ID.String() {
			pick = w
		}
	}
	return &pick
}

// roundRobin picks the least-recently-assigned eligible worker, spreading
// load across the roster. Assignment history is process-local.
type roundRobin struct {
	log *assignmentLog
}

func (r *roundRobin) Pick(eligible []Worker, _ string) *Worker {
	if len(eligible) == 0 {
		return nil
	}

	sorted := make([]Worker, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	pick := sorted[0]
	pickAt := r.log.lastAssigned(pick.ID)
	for _, w := range sorted[1:] {
		if at := r.log.lastAssigned(w.ID); at.Before(pickAt) {
			pick = w
			pickAt = at
		}
	}

	r.log.record(pick.ID)
	return &pick
}

// specialtyMatch prefers a worker whose specialty matches the requested
// service, falling back to next-available when none does.
type specialtyMatch struct{}

func (specialtyMatch) Pick(eligible []Worker, serviceName string) *Worker {
	if len(eligible) == 0 {
		return nil
	}

	var match *Worker
	for i := range eligible {
		w := eligible[i]
		if w.Specialty == nil {
			continue
		}
		if !strings.EqualFold(*w.Specialty, serviceName) {
			continue
		}
		if match == nil || w.ID.String() < match.ID.String() {
			match = &w
		}
	}
	if match != nil {
		return match
	}
	return nextAvailable{}.Pick(eligible, serviceName)
}

// assignmentLog tracks when each worker last received an assignment.
type assignmentLog struct {
	mu   sync.Mutex
	last map[uuid.UUID]time.Time
}

func newAssignmentLog() *assignmentLog {
	return &assignmentLog{last: make(map[uuid.UUID]time.Time)}
}

func (l *assignmentLog) lastAssigned(workerID uuid.UUID) time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last[workerID]
}

func (l *assignmentLog) record(workerID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[workerID] = time.Now()
}
