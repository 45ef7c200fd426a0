package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// exclusionViolation is SQLSTATE 23P01, raised by slots_no_worker_overlap
// when a write would give a worker two booked slots covering the same minute.
const exclusionViolation = "23P01"

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == exclusionViolation
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanWorker(row pgx.Row) (*Worker, error) {
	var w Worker
	var specialty *string

	err := row.Scan(
		&w.ID,
		&w.MerchantID,
		&w.Name,
		&specialty,
		&w.Active,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, err
	}

	w.Specialty = specialty
	return &w, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var workerID *uuid.UUID
	var startMin, endMin int

	err := row.Scan(
		&s.ID,
		&s.MerchantID,
		&workerID,
		&s.Date,
		&startMin,
		&endMin,
		&s.DurationMin,
		&s.IsBooked,
		&s.ServiceName,
		&s.ServicePriceCents,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.WorkerID = workerID
	s.Start = TimeOfDay(startMin)
	s.End = TimeOfDay(endMin)
	s.Date = NormalizeDate(s.Date)
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking

	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.CustomerID,
		&b.Status,
		&b.ServiceName,
		&b.ServicePriceCents,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

const slotColumns = `id, merchant_id, worker_id, date, start_min, end_min, duration_min, is_booked, service_name, service_price_cents, created_at, updated_at`
const bookingColumns = `id, slot_id, customer_id, status, service_name, service_price_cents, created_at, updated_at`

// Interface methods

func (r *PgStore) ListWorkers(ctx context.Context, merchantID uuid.UUID) ([]Worker, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, merchant_id, name, specialty, active, created_at, updated_at
		FROM workers
		WHERE merchant_id = $1
		ORDER BY id
	`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

func (r *PgStore) ListUnavailability(ctx context.Context, workerIDs []uuid.UUID, date time.Time) ([]UnavailabilityWindow, error) {
	if len(workerIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, worker_id, date, start_min, end_min
		FROM unavailability_windows
		WHERE worker_id = ANY($1) AND date = $2
	`, workerIDs, NormalizeDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []UnavailabilityWindow
	for rows.Next() {
		var u UnavailabilityWindow
		var startMin, endMin int
		if err := rows.Scan(&u.ID, &u.WorkerID, &u.Date, &startMin, &endMin); err != nil {
			return nil, err
		}
		u.Start = TimeOfDay(startMin)
		u.End = TimeOfDay(endMin)
		u.Date = NormalizeDate(u.Date)
		result = append(result, u)
	}
	return result, rows.Err()
}

func (r *PgStore) ListSlots(ctx context.Context, merchantID uuid.UUID, date time.Time, filter SlotFilter) ([]Slot, error) {
	q := `
		SELECT ` + slotColumns + `
		FROM slots
		WHERE merchant_id = $1 AND date = $2`
	args := []any{merchantID, NormalizeDate(date)}

	if filter.OnlyBooked {
		q += ` AND is_booked = true`
	}
	if filter.OnlyOpen {
		q += ` AND is_booked = false`
	}
	if filter.WorkerID != nil {
		args = append(args, *filter.WorkerID)
		q += fmt.Sprintf(` AND worker_id = $%d`, len(args))
	}
	q += ` ORDER BY start_min, end_min`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgStore) ListBookedSlotsInRange(ctx context.Context, merchantID uuid.UUID, date time.Time, start, end TimeOfDay) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE merchant_id = $1 AND date = $2 AND is_booked = true
		  AND start_min < $4 AND end_min > $3
		ORDER BY start_min
	`, merchantID, NormalizeDate(date), int(start), int(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func (r *PgStore) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// ConditionalBookSlot is the compare-and-swap at the heart of booking: the
// update only lands while is_booked is still false, so of any number of
// concurrent attempts exactly one observes a row.
func (r *PgStore) ConditionalBookSlot(ctx context.Context, slotID, workerID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET is_booked = true,
		    worker_id = $2,
		    updated_at = now()
		WHERE id = $1
		  AND is_booked = false
		RETURNING `+slotColumns+`
	`, slotID, workerID)

	slot, err := scanSlot(row)
	if err == nil {
		return slot, nil
	}
	if isExclusionViolation(err) {
		return nil, ErrSlotAlreadyBooked
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}

	// Guard failed: distinguish a missing slot from a lost race.
	if _, getErr := r.GetSlotByID(ctx, slotID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrSlotAlreadyBooked
}

func (r *PgStore) ConditionalInsertBookedSlot(ctx context.Context, slot Slot) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO slots (`+slotColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8, $9, now(), now())
		ON CONFLICT (merchant_id, date, start_min, end_min, worker_id) DO NOTHING
		RETURNING `+slotColumns+`
	`, slot.ID, slot.MerchantID, slot.WorkerID, NormalizeDate(slot.Date),
		int(slot.Start), int(slot.End), slot.DurationMin,
		slot.ServiceName, slot.ServicePriceCents)

	inserted, err := scanSlot(row)
	if err != nil {
		// ON CONFLICT covers the identical interval; the exclusion
		// constraint covers a merely overlapping one. Both are lost races.
		if errors.Is(err, ErrSlotNotFound) || isExclusionViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return inserted, nil
}

func (r *PgStore) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, s := range slots {
		tag, err := tx.Exec(ctx, `
			INSERT INTO slots (`+slotColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8, $9, now(), now())
			ON CONFLICT (merchant_id, date, start_min, end_min, worker_id) DO NOTHING
		`, s.ID, s.MerchantID, s.WorkerID, NormalizeDate(s.Date),
			int(s.Start), int(s.End), s.DurationMin,
			s.ServiceName, s.ServicePriceCents)
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (r *PgStore) UpdateSlot(ctx context.Context, id uuid.UUID, patch SlotPatch) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET end_min = COALESCE($2, end_min),
		    duration_min = COALESCE($3, duration_min),
		    service_name = COALESCE($4, service_name),
		    service_price_cents = COALESCE($5, service_price_cents),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns+`
	`, id, minutesPtr(patch.End), patch.DurationMin, patch.ServiceName, patch.ServicePriceCents)

	slot, err := scanSlot(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return slot, nil
}

func (r *PgStore) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// ReleaseAbandonedSlot reopens a booked slot only while no live booking
// references it. Used when retrying a cancellation whose release step failed:
// the guard keeps a retry from reopening a slot that was rebooked in between.
func (r *PgStore) ReleaseAbandonedSlot(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots s
		SET is_booked = false,
		    updated_at = now()
		WHERE s.id = $1
		  AND s.is_booked = true
		  AND NOT EXISTS (
		        SELECT 1 FROM bookings b
		        WHERE b.slot_id = s.id
		          AND b.status <> 'cancelled'
		  )
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgStore) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+bookingColumns+`
	`, b.ID, b.SlotID, b.CustomerID, b.Status, b.ServiceName, b.ServicePriceCents)

	return scanBooking(row)
}

func (r *PgStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from []BookingStatus, to BookingStatus) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+bookingColumns+`
	`, id, to, statusStrings(from))

	return scanBooking(row)
}

func (r *PgStore) UpdateBookingService(ctx context.Context, id uuid.UUID, serviceName string, priceCents int64) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET service_name = $2,
		    service_price_cents = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+bookingColumns+`
	`, id, serviceName, priceCents)

	return scanBooking(row)
}

func (r *PgStore) GetScheduleConfig(ctx context.Context, merchantID uuid.UUID) (*ScheduleConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT merchant_id, day_start_min, day_end_min, interval_min, durations_min, strategy
		FROM schedule_configs
		WHERE merchant_id = $1
	`, merchantID)
	return scanScheduleConfig(row)
}

func (r *PgStore) ListScheduleConfigs(ctx context.Context) ([]ScheduleConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT merchant_id, day_start_min, day_end_min, interval_min, durations_min, strategy
		FROM schedule_configs
		ORDER BY merchant_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleConfig
	for rows.Next() {
		cfg, err := scanScheduleConfig(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *cfg)
	}
	return result, rows.Err()
}

func scanScheduleConfig(row pgx.Row) (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	var dayStart, dayEnd int
	var durations []int32
	var strategy string

	err := row.Scan(&cfg.MerchantID, &dayStart, &dayEnd, &cfg.IntervalMin, &durations, &strategy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}

	cfg.DayStart = TimeOfDay(dayStart)
	cfg.DayEnd = TimeOfDay(dayEnd)
	cfg.Strategy = StrategyName(strategy)
	for _, d := range durations {
		cfg.DurationsMin = append(cfg.DurationsMin, int(d))
	}
	return &cfg, nil
}

func minutesPtr(t *TimeOfDay) *int {
	if t == nil {
		return nil
	}
	m := int(*t)
	return &m
}

func statusStrings(statuses []BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
