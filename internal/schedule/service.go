package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotwise/scheduler/internal/telemetry"
)

var (
	// ErrSlotAlreadyBooked is the expected, recoverable outcome of losing the
	// race for a slot: the caller must pick another option, never retry the
	// same conditional update blindly.
	ErrSlotAlreadyBooked = errors.New("slot already booked")

	// ErrExtensionConflict reports a conflicting booking inside the range an
	// extension would add.
	ErrExtensionConflict = errors.New("extension conflicts with an existing booking")

	ErrNoEligibleWorkers       = errors.New("no eligible workers for the requested time")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrStoreUnavailable wraps transient backing-store failures, including
	// timeouts. A reserve that fails this way is indeterminate: callers must
	// re-read the slot's state before retrying.
	ErrStoreUnavailable = errors.New("backing store unavailable")
)

// SlotRef identifies the slot a reservation targets: either a persisted row
// or a virtual slot that gets materialized at commit time.
type SlotRef struct {
	SlotID  *uuid.UUID
	Virtual *VirtualSlot
}

// ReserveRequest carries the customer and service metadata for a reservation.
type ReserveRequest struct {
	CustomerID        uuid.UUID
	ServiceName       string
	ServicePriceCents int64
}

// AddOn is an optional additional service merged into a booking on extension.
type AddOn struct {
	Name       string
	PriceCents int64
}

// Options tunes a Service. Zero values fall back to sane defaults.
type Options struct {
	DefaultStrategy StrategyName
	GapFillTimeout  time.Duration
	Now             func() time.Time
}

// Service is the scheduling engine: availability resolution, worker
// assignment and the booking state machine. Booking correctness rests on the
// store's conditional updates, not on in-process locking, so concurrent
// requests from other processes are handled identically.
type Service struct {
	store        Store
	cache        AvailabilityCache
	logger       zerolog.Logger
	assignments  *assignmentLog
	defaultStrat StrategyName
	gapTimeout   time.Duration
	now          func() time.Time
}

func NewService(store Store, cache AvailabilityCache, logger zerolog.Logger, opts Options) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GapFillTimeout <= 0 {
		opts.GapFillTimeout = 10 * time.Second
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = StrategyNextAvailable
	}
	return &Service{
		store:        store,
		cache:        cache,
		logger:       logger.With().Str("component", "schedule").Logger(),
		assignments:  newAssignmentLog(),
		defaultStrat: opts.DefaultStrategy,
		gapTimeout:   opts.GapFillTimeout,
		now:          opts.Now,
	}
}

// Reserve attempts to book the referenced slot for a customer. Exactly one
// concurrent Reserve for the same slot can succeed; every other caller gets
// ErrSlotAlreadyBooked. On success the pending booking is returned and
// gap filling plus cache invalidation run in the background.
func (s *Service) Reserve(ctx context.Context, ref SlotRef, req ReserveRequest) (*Booking, error) {
	switch {
	case ref.SlotID != nil:
		return s.reservePersisted(ctx, *ref.SlotID, req)
	case ref.Virtual != nil:
		return s.reserveVirtual(ctx, *ref.Virtual, req)
	default:
		return nil, fmt.Errorf("%w: slot reference is empty", ErrInvalidRequest)
	}
}

func (s *Service) reservePersisted(ctx context.Context, slotID uuid.UUID, req ReserveRequest) (*Booking, error) {
	slot, err := s.store.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, storeErr("load slot", err)
	}
	if slot.IsBooked {
		telemetry.Reservations.WithLabelValues(telemetry.OutcomeConflict).Inc()
		return nil, ErrSlotAlreadyBooked
	}
	if !s.offerable(slot.Date, slot.Start) {
		return nil, fmt.Errorf("%w: slot is in the past", ErrInvalidRequest)
	}

	workerID, err := s.resolveWorker(ctx, slot.MerchantID, slot.Date, slot.Start, slot.DurationMin, slot.WorkerID, req.ServiceName)
	if err != nil {
		return nil, err
	}

	booked, err := s.store.ConditionalBookSlot(ctx, slot.ID, workerID)
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) {
			telemetry.Reservations.WithLabelValues(telemetry.OutcomeConflict).Inc()
			return nil, err
		}
		telemetry.Reservations.WithLabelValues(telemetry.OutcomeError).Inc()
		return nil, storeErr("book slot", err)
	}

	return s.finishReserve(ctx, booked, req)
}

func (s *Service) reserveVirtual(ctx context.Context, vs VirtualSlot, req ReserveRequest) (*Booking, error) {
	if vs.DurationMin <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
	}
	vs.Date = NormalizeDate(vs.Date)

	cfg, err := s.store.GetScheduleConfig(ctx, vs.MerchantID)
	if err != nil {
		return nil, storeErr("load schedule config", err)
	}
	if vs.Start < cfg.DayStart || vs.End() > cfg.DayEnd {
		return nil, fmt.Errorf("%w: slot outside working hours", ErrInvalidRequest)
	}
	if !s.offerable(vs.Date, vs.Start) {
		return nil, fmt.Errorf("%w: slot is in the past", ErrInvalidRequest)
	}

	workerID, err := s.resolveWorker(ctx, vs.MerchantID, vs.Date, vs.Start, vs.DurationMin, vs.WorkerID, req.ServiceName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	slot, err := s.store.ConditionalInsertBookedSlot(ctx, Slot{
		ID:                uuid.New(),
		MerchantID:        vs.MerchantID,
		WorkerID:          &workerID,
		Date:              vs.Date,
		Start:             vs.Start,
		End:               vs.End(),
		DurationMin:       vs.DurationMin,
		IsBooked:          true,
		ServiceName:       req.ServiceName,
		ServicePriceCents: req.ServicePriceCents,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) {
			telemetry.Reservations.WithLabelValues(telemetry.OutcomeConflict).Inc()
			return nil, err
		}
		telemetry.Reservations.WithLabelValues(telemetry.OutcomeError).Inc()
		return nil, storeErr("materialize slot", err)
	}

	return s.finishReserve(ctx, slot, req)
}

// finishReserve creates the booking behind a freshly flipped slot. The slot
// flip is the single source of truth: if the booking insert fails the slot is
// released again so no booked slot without a booking can survive.
func (s *Service) finishReserve(ctx context.Context, slot *Slot, req ReserveRequest) (*Booking, error) {
	booking, err := s.store.CreateBooking(ctx, Booking{
		ID:                uuid.New(),
		SlotID:            slot.ID,
		CustomerID:        req.CustomerID,
		Status:            StatusPending,
		ServiceName:       req.ServiceName,
		ServicePriceCents: req.ServicePriceCents,
	})
	if err != nil {
		if relErr := s.store.ReleaseSlot(ctx, slot.ID); relErr != nil {
			s.logger.Error().Err(relErr).Stringer("slot_id", slot.ID).Msg("failed to release slot after booking insert failure")
		}
		telemetry.Reservations.WithLabelValues(telemetry.OutcomeError).Inc()
		return nil, storeErr("create booking", err)
	}

	telemetry.Reservations.WithLabelValues(telemetry.OutcomeBooked).Inc()
	s.logger.Info().
		Stringer("booking_id", booking.ID).
		Stringer("slot_id", slot.ID).
		Str("date", slot.Date.Format("2006-01-02")).
		Stringer("start", slot.Start).
		Msg("slot reserved")

	s.afterMutation(slot.MerchantID, slot.Date)
	return booking, nil
}

// resolveWorker re-validates eligibility against the live store (never the
// cache) and picks the serving worker. A pre-assigned worker that is no
// longer free means the slot is effectively gone: that is a booking conflict.
func (s *Service) resolveWorker(ctx context.Context, merchantID uuid.UUID, date time.Time, t TimeOfDay, durationMin int, assigned *uuid.UUID, serviceName string) (uuid.UUID, error) {
	day, err := s.loadDay(ctx, merchantID, date)
	if err != nil {
		return uuid.Nil, storeErr("load day schedule", err)
	}

	eligible := EligibleWorkers(t, durationMin, day.workers, day.windows, day.booked)

	if assigned != nil {
		for _, w := range eligible {
			if w.ID == *assigned {
				return w.ID, nil
			}
		}
		telemetry.Reservations.WithLabelValues(telemetry.OutcomeConflict).Inc()
		return uuid.Nil, ErrSlotAlreadyBooked
	}

	strategy := s.defaultStrat
	if cfg, cfgErr := s.store.GetScheduleConfig(ctx, merchantID); cfgErr == nil && cfg.Strategy != "" {
		strategy = cfg.Strategy
	}

	pick := StrategyFor(strategy, s.assignments).Pick(eligible, serviceName)
	if pick == nil {
		return uuid.Nil, ErrNoEligibleWorkers
	}
	return pick.ID, nil
}

// Cancel sets the booking to cancelled and flips the linked slot back to
// open, making it immediately offerable again. Repeated cancels are no-ops,
// except that a retry finishes a slot release a prior attempt left undone.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return storeErr("load booking", err)
	}
	if booking.Status == StatusCancelled {
		// An earlier cancel may have flipped the booking and then failed on
		// the release. The guarded release cannot touch a slot that was
		// rebooked in between.
		released, err := s.store.ReleaseAbandonedSlot(ctx, booking.SlotID)
		if err != nil {
			return storeErr("release slot", err)
		}
		if released {
			if slot, slotErr := s.store.GetSlotByID(ctx, booking.SlotID); slotErr == nil {
				s.logger.Info().Stringer("booking_id", bookingID).Stringer("slot_id", slot.ID).Msg("released slot on cancel retry")
				s.afterMutation(slot.MerchantID, slot.Date)
			}
		}
		return nil
	}

	_, err = s.store.UpdateBookingStatus(ctx, bookingID,
		[]BookingStatus{StatusPending, StatusConfirmed}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return fmt.Errorf("%w: booking is %s", ErrInvalidStatusTransition, booking.Status)
		}
		return storeErr("cancel booking", err)
	}

	slot, err := s.store.GetSlotByID(ctx, booking.SlotID)
	if err != nil {
		return storeErr("load slot", err)
	}
	if err := s.store.ReleaseSlot(ctx, slot.ID); err != nil {
		return storeErr("release slot", err)
	}

	s.logger.Info().Stringer("booking_id", bookingID).Stringer("slot_id", slot.ID).Msg("booking cancelled")
	s.afterMutation(slot.MerchantID, slot.Date)
	return nil
}

// Extend grows a booking's slot to newEnd, optionally merging an additional
// service. The added range is checked for conflicts against already booked
// slots; any hit aborts with ErrExtensionConflict before anything commits.
func (s *Service) Extend(ctx context.Context, bookingID uuid.UUID, newEnd TimeOfDay, addOn *AddOn) (*Booking, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr("load booking", err)
	}
	if booking.Status != StatusPending && booking.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: booking is %s", ErrInvalidStatusTransition, booking.Status)
	}

	slot, err := s.store.GetSlotByID(ctx, booking.SlotID)
	if err != nil {
		return nil, storeErr("load slot", err)
	}
	if newEnd <= slot.End {
		return nil, fmt.Errorf("%w: new end time must extend the slot", ErrInvalidRequest)
	}

	if cfg, cfgErr := s.store.GetScheduleConfig(ctx, slot.MerchantID); cfgErr == nil && newEnd > cfg.DayEnd {
		return nil, fmt.Errorf("%w: extension exceeds working hours", ErrInvalidRequest)
	}

	inRange, err := s.store.ListBookedSlotsInRange(ctx, slot.MerchantID, slot.Date, slot.End, newEnd)
	if err != nil {
		return nil, storeErr("list booked slots", err)
	}
	for _, other := range inRange {
		if other.ID == slot.ID {
			continue
		}
		telemetry.ExtensionConflicts.Inc()
		return nil, ErrExtensionConflict
	}

	serviceName := booking.ServiceName
	priceCents := booking.ServicePriceCents
	if addOn != nil {
		if serviceName == "" {
			serviceName = addOn.Name
		} else {
			serviceName = serviceName + " + " + addOn.Name
		}
		priceCents += addOn.PriceCents
	}

	newDuration := int(newEnd - slot.Start)
	if _, err := s.store.UpdateSlot(ctx, slot.ID, SlotPatch{
		End:               &newEnd,
		DurationMin:       &newDuration,
		ServiceName:       &serviceName,
		ServicePriceCents: &priceCents,
	}); err != nil {
		// A booking that landed between the range check and this update is
		// caught by the store's overlap guard.
		if errors.Is(err, ErrSlotAlreadyBooked) {
			telemetry.ExtensionConflicts.Inc()
			return nil, ErrExtensionConflict
		}
		return nil, storeErr("update slot", err)
	}

	updated, err := s.store.UpdateBookingService(ctx, bookingID, serviceName, priceCents)
	if err != nil {
		return nil, storeErr("update booking", err)
	}

	s.logger.Info().
		Stringer("booking_id", bookingID).
		Stringer("new_end", newEnd).
		Int("duration_min", newDuration).
		Msg("booking extended")

	s.afterMutation(slot.MerchantID, slot.Date)
	return updated, nil
}

// Confirm moves a pending booking to confirmed.
func (s *Service) Confirm(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.SetStatus(ctx, bookingID, StatusConfirmed)
}

// SetStatus applies an externally driven status change. Cancellation goes
// through Cancel so the slot release always accompanies it.
func (s *Service) SetStatus(ctx context.Context, bookingID uuid.UUID, to BookingStatus) (*Booking, error) {
	if to == StatusCancelled {
		if err := s.Cancel(ctx, bookingID); err != nil {
			return nil, err
		}
		return s.GetBooking(ctx, bookingID)
	}

	from, ok := allowedTransitions[to]
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, to)
	}

	updated, err := s.store.UpdateBookingStatus(ctx, bookingID, from, to)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// Distinguish a missing booking from a CAS miss on status.
			if existing, getErr := s.store.GetBookingByID(ctx, bookingID); getErr == nil {
				return nil, fmt.Errorf("%w: booking is %s", ErrInvalidStatusTransition, existing.Status)
			}
			return nil, ErrBookingNotFound
		}
		return nil, storeErr("update booking status", err)
	}
	return updated, nil
}

var allowedTransitions = map[BookingStatus][]BookingStatus{
	StatusConfirmed: {StatusPending},
	StatusMissed:    {StatusPending, StatusConfirmed},
	StatusCompleted: {StatusConfirmed},
}

// GetBooking retrieves a booking by ID.
func (s *Service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	booking, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, storeErr("load booking", err)
	}
	return booking, nil
}

// afterMutation replenishes gap slots and purges cached availability for the
// mutated (merchant, date) pair. Fire-and-forget: failures here are logged
// and never reach the booking that triggered them.
func (s *Service) afterMutation(merchantID uuid.UUID, date time.Time) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.gapTimeout)
		defer cancel()
		defer s.cache.PurgeDate(ctx, merchantID, date)

		inserted, err := s.Replenish(ctx, merchantID, date)
		if err != nil {
			telemetry.GapFillRuns.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).
				Stringer("merchant_id", merchantID).
				Str("date", date.Format("2006-01-02")).
				Msg("background gap fill failed")
			return
		}
		telemetry.GapFillRuns.WithLabelValues("ok").Inc()
		if inserted > 0 {
			s.logger.Debug().Int("slots", inserted).Stringer("merchant_id", merchantID).Msg("gap fill replenished slots")
		}
	}()
}

func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
