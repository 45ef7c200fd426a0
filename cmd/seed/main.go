package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotwise/scheduler/internal/db"
	"github.com/slotwise/scheduler/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	merchants, err := seedMerchants(context.Background(), pool, 20)
	if err != nil {
		log.Fatalf("seed merchants: %v", err)
	}
	workers, err := seedWorkers(context.Background(), pool, merchants, 5)
	if err != nil {
		log.Fatalf("seed workers: %v", err)
	}
	if err := seedUnavailability(context.Background(), pool, workers, 7); err != nil {
		log.Fatalf("seed unavailability: %v", err)
	}
	if err := seedSlots(context.Background(), pool, merchants, 7); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

var specialties = []string{
	"Haircut",
	"Coloring",
	"Manicure",
	"Pedicure",
	"Massage",
	"Facial",
	"Waxing",
	"Styling",
}

type seededMerchant struct {
	ID        uuid.UUID
	DayStart  schedule.TimeOfDay
	DayEnd    schedule.TimeOfDay
	Interval  int
	Durations []int
}

func seedMerchants(ctx context.Context, pool *pgxpool.Pool, count int) ([]seededMerchant, error) {
	log.Printf("seeding %d merchants", count)

	strategies := []string{"next-available", "round-robin", "specialty"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	merchants := make([]seededMerchant, 0, count)
	for i := 0; i < count; i++ {
		m := seededMerchant{
			ID:        uuid.New(),
			DayStart:  schedule.TimeOfDay(gofakeit.Number(7, 10) * 60),
			DayEnd:    schedule.TimeOfDay(gofakeit.Number(17, 21) * 60),
			Interval:  30,
			Durations: []int{30, 60},
		}
		strategy := strategies[gofakeit.Number(0, len(strategies)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_configs (merchant_id, day_start_min, day_end_min, interval_min, durations_min, strategy)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, m.ID, int(m.DayStart), int(m.DayEnd), m.Interval, m.Durations, strategy)
		if err != nil {
			return nil, err
		}
		merchants = append(merchants, m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("merchants seeded")
	return merchants, nil
}

func seedWorkers(ctx context.Context, pool *pgxpool.Pool, merchants []seededMerchant, perMerchant int) (map[uuid.UUID][]uuid.UUID, error) {
	log.Printf("seeding %d workers per merchant", perMerchant)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	workers := make(map[uuid.UUID][]uuid.UUID, len(merchants))
	for _, m := range merchants {
		for i := 0; i < perMerchant; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			// Roughly one in four workers is a generalist without a specialty.
			var specialty *string
			if gofakeit.Number(0, 3) > 0 {
				specialty = &specialties[gofakeit.Number(0, len(specialties)-1)]
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO workers (id, merchant_id, name, specialty, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, true, now(), now())
			`, id, m.ID, name, specialty)
			if err != nil {
				return nil, err
			}
			workers[m.ID] = append(workers[m.ID], id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("workers seeded")
	return workers, nil
}

func seedUnavailability(ctx context.Context, pool *pgxpool.Pool, workers map[uuid.UUID][]uuid.UUID, days int) error {
	log.Printf("seeding unavailability windows for %d days", days)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, ids := range workers {
		for _, workerID := range ids {
			for offset := 0; offset < days; offset++ {
				// Roughly one worker in three takes a midday break.
				if gofakeit.Number(0, 2) != 0 {
					continue
				}
				date := schedule.NormalizeDate(time.Now().AddDate(0, 0, offset))
				start := gofakeit.Number(11, 14) * 60
				end := start + 60

				_, err := tx.Exec(ctx, `
					INSERT INTO unavailability_windows (id, worker_id, date, start_min, end_min)
					VALUES ($1, $2, $3, $4, $5)
				`, uuid.New(), workerID, date, start, end)
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("unavailability windows seeded")
	return nil
}

func seedSlots(ctx context.Context, pool *pgxpool.Pool, merchants []seededMerchant, days int) error {
	log.Printf("seeding open slots for %d days", days)

	const batchSize = 500

	batch := make([][]any, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		for _, args := range batch {
			if _, err := tx.Exec(ctx, `
				INSERT INTO slots (id, merchant_id, worker_id, date, start_min, end_min, duration_min, is_booked, service_name, service_price_cents, created_at, updated_at)
				VALUES ($1, $2, NULL, $3, $4, $5, $6, false, '', 0, now(), now())
				ON CONFLICT (merchant_id, date, start_min, end_min, worker_id) DO NOTHING
			`, args...); err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	total := 0
	for _, m := range merchants {
		for offset := 0; offset < days; offset++ {
			date := schedule.NormalizeDate(time.Now().AddDate(0, 0, offset))
			candidates := schedule.CandidateSlots(
				[]schedule.Gap{{Start: m.DayStart, End: m.DayEnd}},
				m.Durations,
			)
			for _, c := range candidates {
				batch = append(batch, []any{
					uuid.New(), m.ID, date, int(c.Start), int(c.End), int(c.End - c.Start),
				})
				total++
				if len(batch) >= batchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Printf("slots seeded: %d", total)
	return nil
}
