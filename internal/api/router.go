package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/slotwise/scheduler/internal/schedule"
)

// SchedulingService is the engine surface the HTTP layer depends on.
type SchedulingService interface {
	GetAvailableSlots(ctx context.Context, merchantID uuid.UUID, date time.Time, durationMin int) ([]schedule.TimePoint, error)
	Reserve(ctx context.Context, ref schedule.SlotRef, req schedule.ReserveRequest) (*schedule.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID) error
	Extend(ctx context.Context, bookingID uuid.UUID, newEnd schedule.TimeOfDay, addOn *schedule.AddOn) (*schedule.Booking, error)
	Confirm(ctx context.Context, bookingID uuid.UUID) (*schedule.Booking, error)
	SetStatus(ctx context.Context, bookingID uuid.UUID, to schedule.BookingStatus) (*schedule.Booking, error)
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*schedule.Booking, error)
}

type RouterConfig struct {
	Service SchedulingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/merchants/{merchantID}/availability", availabilityHandler(cfg.Service))

	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/confirm", confirmBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/extend", extendBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/status", updateStatusHandler(cfg.Service))

	return r
}
