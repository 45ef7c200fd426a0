package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWorkerNotFound   = errors.New("worker not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrMerchantNotFound = errors.New("merchant schedule not found")
)

// SlotFilter narrows ListSlots results.
type SlotFilter struct {
	OnlyBooked bool
	OnlyOpen   bool
	WorkerID   *uuid.UUID
}

// SlotPatch is a partial slot update; nil fields are left untouched.
type SlotPatch struct {
	End               *TimeOfDay
	DurationMin       *int
	ServiceName       *string
	ServicePriceCents *int64
}

// Store contains all backing-store interactions needed by the engine. The
// write path relies on the store's conditional updates for correctness;
// in-process state is never the arbiter of a booking.
type Store interface {
	ListWorkers(ctx context.Context, merchantID uuid.UUID) ([]Worker, error)
	ListUnavailability(ctx context.Context, workerIDs []uuid.UUID, date time.Time) ([]UnavailabilityWindow, error)

	ListSlots(ctx context.Context, merchantID uuid.UUID, date time.Time, filter SlotFilter) ([]Slot, error)
	ListBookedSlotsInRange(ctx context.Context, merchantID uuid.UUID, date time.Time, start, end TimeOfDay) ([]Slot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)

	// ConditionalBookSlot flips is_booked false -> true and assigns the worker
	// in one guarded statement. A lost race, including one that would hand the
	// worker a second booked slot overlapping this one, surfaces as
	// ErrSlotAlreadyBooked.
	ConditionalBookSlot(ctx context.Context, slotID, workerID uuid.UUID) (*Slot, error)

	// ConditionalInsertBookedSlot materializes a virtual slot as an already
	// booked row. A duplicate (merchant, date, start, end, worker) tuple or a
	// booked slot of the same worker overlapping the interval surfaces as
	// ErrSlotAlreadyBooked.
	ConditionalInsertBookedSlot(ctx context.Context, slot Slot) (*Slot, error)

	InsertSlots(ctx context.Context, slots []Slot) (int, error)

	// UpdateSlot applies the patch; growing end_min past another booked slot of
	// the same worker surfaces as ErrSlotAlreadyBooked.
	UpdateSlot(ctx context.Context, id uuid.UUID, patch SlotPatch) (*Slot, error)
	ReleaseSlot(ctx context.Context, id uuid.UUID) error

	// ReleaseAbandonedSlot reopens a booked slot only while no non-cancelled
	// booking references it, reporting whether it flipped anything.
	ReleaseAbandonedSlot(ctx context.Context, id uuid.UUID) (bool, error)

	CreateBooking(ctx context.Context, b Booking) (*Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from []BookingStatus, to BookingStatus) (*Booking, error)
	UpdateBookingService(ctx context.Context, id uuid.UUID, serviceName string, priceCents int64) (*Booking, error)

	GetScheduleConfig(ctx context.Context, merchantID uuid.UUID) (*ScheduleConfig, error)
	ListScheduleConfigs(ctx context.Context) ([]ScheduleConfig, error)
}
