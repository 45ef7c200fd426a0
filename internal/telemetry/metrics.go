// Package telemetry exposes Prometheus metrics for the scheduling engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reservations counts reserve attempts by outcome (booked, conflict, error).
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_reservations_total",
		Help: "Reserve attempts by outcome.",
	}, []string{"outcome"})

	// ExtensionConflicts counts extend attempts rejected by a conflicting booking.
	ExtensionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_extension_conflicts_total",
		Help: "Booking extensions rejected due to conflicts.",
	})

	// CacheLookups counts availability cache lookups by shape (day, window)
	// and result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_availability_cache_lookups_total",
		Help: "Availability cache lookups by shape and result.",
	}, []string{"shape", "result"})

	// GapFillSlots counts candidate slots materialized by the gap filler.
	GapFillSlots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_gapfill_slots_inserted_total",
		Help: "Slots materialized by gap filling.",
	})

	// GapFillRuns counts gap-fill runs by result (ok, error).
	GapFillRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_gapfill_runs_total",
		Help: "Gap-fill runs by result.",
	}, []string{"result"})
)

const (
	OutcomeBooked   = "booked"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)
