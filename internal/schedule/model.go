package schedule

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusMissed    BookingStatus = "missed"
	StatusCompleted BookingStatus = "completed"
)

type StrategyName string

const (
	StrategyNextAvailable StrategyName = "next-available"
	StrategyRoundRobin    StrategyName = "round-robin"
	StrategySpecialty     StrategyName = "specialty"
)

type Worker struct {
	ID         uuid.UUID
	MerchantID uuid.UUID
	Name       string
	Specialty  *string
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UnavailabilityWindow is a period during which a worker cannot be assigned.
// Windows never overlap by construction, but the resolver tolerates unsorted
// and adjacent input.
type UnavailabilityWindow struct {
	ID       uuid.UUID
	WorkerID uuid.UUID
	Date     time.Time
	Start    TimeOfDay
	End      TimeOfDay
}

// Slot is the unit of reservation: a persisted bookable interval for a
// merchant, optionally pre-assigned to a worker.
type Slot struct {
	ID                uuid.UUID
	MerchantID        uuid.UUID
	WorkerID          *uuid.UUID
	Date              time.Time
	Start             TimeOfDay
	End               TimeOfDay
	DurationMin       int
	IsBooked          bool
	ServiceName       string
	ServicePriceCents int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// VirtualSlot is a bookable interval computed on the fly that has no backing
// row yet. It becomes a persisted Slot exactly when it is successfully booked.
type VirtualSlot struct {
	MerchantID  uuid.UUID
	Date        time.Time
	Start       TimeOfDay
	DurationMin int
	WorkerID    *uuid.UUID
}

func (v VirtualSlot) End() TimeOfDay {
	return v.Start.Add(v.DurationMin)
}

type Booking struct {
	ID                uuid.UUID
	SlotID            uuid.UUID
	CustomerID        uuid.UUID
	Status            BookingStatus
	ServiceName       string
	ServicePriceCents int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ScheduleConfig carries a merchant's working hours and slot generation knobs.
type ScheduleConfig struct {
	MerchantID   uuid.UUID
	DayStart     TimeOfDay
	DayEnd       TimeOfDay
	IntervalMin  int
	DurationsMin []int
	Strategy     StrategyName
}

// WorkerSummary is the caller-facing projection of an eligible worker.
type WorkerSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

// TimePoint is one entry of the availability grid: a bookable time with the
// workers eligible to serve it. Points with no eligible workers are never
// returned.
type TimePoint struct {
	Time    TimeOfDay       `json:"time"`
	Workers []WorkerSummary `json:"eligible_workers"`
}

func summarize(w Worker) WorkerSummary {
	return WorkerSummary{ID: w.ID, Name: w.Name, Specialty: w.Specialty}
}
