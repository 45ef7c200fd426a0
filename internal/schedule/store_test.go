package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same conditional-update semantics
// as the postgres implementation, guarded by a single mutex so concurrent
// reservations race on real shared state.
type fakeStore struct {
	mu       sync.Mutex
	workers  []Worker
	windows  []UnavailabilityWindow
	slots    map[uuid.UUID]*Slot
	bookings map[uuid.UUID]*Booking
	configs  map[uuid.UUID]ScheduleConfig
}

var _ Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:    make(map[uuid.UUID]*Slot),
		bookings: make(map[uuid.UUID]*Booking),
		configs:  make(map[uuid.UUID]ScheduleConfig),
	}
}

func (f *fakeStore) addWorker(w Worker) Worker {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.Active = true
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers = append(f.workers, w)
	return w
}

func (f *fakeStore) addSlot(s Slot) Slot {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.DurationMin == 0 {
		s.DurationMin = int(s.End - s.Start)
	}
	s.Date = NormalizeDate(s.Date)
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := s
	f.slots[s.ID] = &cp
	return s
}

func (f *fakeStore) ListWorkers(_ context.Context, merchantID uuid.UUID) ([]Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Worker
	for _, w := range f.workers {
		if w.MerchantID == merchantID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUnavailability(_ context.Context, workerIDs []uuid.UUID, date time.Time) ([]UnavailabilityWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[uuid.UUID]bool, len(workerIDs))
	for _, id := range workerIDs {
		ids[id] = true
	}
	var out []UnavailabilityWindow
	for _, u := range f.windows {
		if ids[u.WorkerID] && SameDate(u.Date, date) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSlots(_ context.Context, merchantID uuid.UUID, date time.Time, filter SlotFilter) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Slot
	for _, s := range f.slots {
		if s.MerchantID != merchantID || !SameDate(s.Date, date) {
			continue
		}
		if filter.OnlyBooked && !s.IsBooked {
			continue
		}
		if filter.OnlyOpen && s.IsBooked {
			continue
		}
		if filter.WorkerID != nil && (s.WorkerID == nil || *s.WorkerID != *filter.WorkerID) {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) ListBookedSlotsInRange(_ context.Context, merchantID uuid.UUID, date time.Time, start, end TimeOfDay) ([]Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Slot
	for _, s := range f.slots {
		if s.MerchantID != merchantID || !SameDate(s.Date, date) || !s.IsBooked {
			continue
		}
		if s.Start < end && s.End > start {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSlotByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ConditionalBookSlot(_ context.Context, slotID, workerID uuid.UUID) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.IsBooked {
		return nil, ErrSlotAlreadyBooked
	}
	if f.workerOverlapLocked(&workerID, s.Date, s.Start, s.End, s.ID) {
		return nil, ErrSlotAlreadyBooked
	}
	s.IsBooked = true
	s.WorkerID = &workerID
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ConditionalInsertBookedSlot(_ context.Context, slot Slot) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.slots {
		if existing.MerchantID == slot.MerchantID &&
			SameDate(existing.Date, slot.Date) &&
			existing.Start == slot.Start &&
			existing.End == slot.End &&
			sameWorker(existing.WorkerID, slot.WorkerID) {
			return nil, ErrSlotAlreadyBooked
		}
	}
	if f.workerOverlapLocked(slot.WorkerID, slot.Date, slot.Start, slot.End, slot.ID) {
		return nil, ErrSlotAlreadyBooked
	}
	cp := slot
	f.slots[slot.ID] = &cp
	out := cp
	return &out, nil
}

// workerOverlapLocked mirrors the slots_no_worker_overlap exclusion
// constraint: true when the worker already holds a booked slot overlapping
// [start, end) on the date. Unassigned slots never conflict.
func (f *fakeStore) workerOverlapLocked(workerID *uuid.UUID, date time.Time, start, end TimeOfDay, exclude uuid.UUID) bool {
	if workerID == nil {
		return false
	}
	for _, existing := range f.slots {
		if existing.ID == exclude || !existing.IsBooked || existing.WorkerID == nil {
			continue
		}
		if *existing.WorkerID == *workerID &&
			SameDate(existing.Date, date) &&
			existing.Start < end && existing.End > start {
			return true
		}
	}
	return false
}

func (f *fakeStore) InsertSlots(_ context.Context, slots []Slot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, slot := range slots {
		dup := false
		for _, existing := range f.slots {
			if existing.MerchantID == slot.MerchantID &&
				SameDate(existing.Date, slot.Date) &&
				existing.Start == slot.Start &&
				existing.End == slot.End &&
				sameWorker(existing.WorkerID, slot.WorkerID) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		cp := slot
		f.slots[slot.ID] = &cp
		inserted++
	}
	return inserted, nil
}

func (f *fakeStore) UpdateSlot(_ context.Context, id uuid.UUID, patch SlotPatch) (*Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if patch.End != nil {
		if s.IsBooked && f.workerOverlapLocked(s.WorkerID, s.Date, s.Start, *patch.End, s.ID) {
			return nil, ErrSlotAlreadyBooked
		}
		s.End = *patch.End
	}
	if patch.DurationMin != nil {
		s.DurationMin = *patch.DurationMin
	}
	if patch.ServiceName != nil {
		s.ServiceName = *patch.ServiceName
	}
	if patch.ServicePriceCents != nil {
		s.ServicePriceCents = *patch.ServicePriceCents
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ReleaseSlot(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	s.IsBooked = false
	return nil
}

func (f *fakeStore) ReleaseAbandonedSlot(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || !s.IsBooked {
		return false, nil
	}
	for _, b := range f.bookings {
		if b.SlotID == id && b.Status != StatusCancelled {
			return false, nil
		}
	}
	s.IsBooked = false
	return true, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b Booking) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := b
	f.bookings[b.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeStore) GetBookingByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) UpdateBookingStatus(_ context.Context, id uuid.UUID, from []BookingStatus, to BookingStatus) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	matched := false
	for _, s := range from {
		if b.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		// Same shape as the guarded UPDATE hitting zero rows.
		return nil, ErrBookingNotFound
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (f *fakeStore) UpdateBookingService(_ context.Context, id uuid.UUID, serviceName string, priceCents int64) (*Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	b.ServiceName = serviceName
	b.ServicePriceCents = priceCents
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (f *fakeStore) GetScheduleConfig(_ context.Context, merchantID uuid.UUID) (*ScheduleConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[merchantID]
	if !ok {
		return nil, ErrMerchantNotFound
	}
	cp := cfg
	return &cp, nil
}

func (f *fakeStore) ListScheduleConfigs(_ context.Context) ([]ScheduleConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ScheduleConfig, 0, len(f.configs))
	for _, cfg := range f.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func sameWorker(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
