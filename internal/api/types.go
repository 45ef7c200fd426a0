package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/scheduler/internal/schedule"
)

type VirtualSlotRequest struct {
	MerchantID      string `json:"merchant_id"`
	Date            string `json:"date"`  // YYYY-MM-DD
	Start           string `json:"start"` // HH:MM
	DurationMinutes int    `json:"duration_minutes"`
	WorkerID        string `json:"worker_id,omitempty"`
}

type CreateBookingRequest struct {
	SlotID            string              `json:"slot_id,omitempty"`
	Virtual           *VirtualSlotRequest `json:"virtual,omitempty"`
	CustomerID        string              `json:"customer_id"`
	ServiceName       string              `json:"service_name,omitempty"`
	ServicePriceCents int64               `json:"service_price_cents,omitempty"`
}

type ExtendBookingRequest struct {
	NewEnd string `json:"new_end"` // HH:MM
	AddOn  *struct {
		Name       string `json:"name"`
		PriceCents int64  `json:"price_cents"`
	} `json:"add_on_service,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type BookingResponse struct {
	ID                uuid.UUID `json:"id"`
	SlotID            uuid.UUID `json:"slot_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	Status            string    `json:"status"`
	ServiceName       string    `json:"service_name,omitempty"`
	ServicePriceCents int64     `json:"service_price_cents,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type AvailabilityResponse struct {
	MerchantID      uuid.UUID            `json:"merchant_id"`
	Date            string               `json:"date"`
	DurationMinutes int                  `json:"duration_minutes"`
	Slots           []schedule.TimePoint `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func bookingResponse(b *schedule.Booking) BookingResponse {
	return BookingResponse{
		ID:                b.ID,
		SlotID:            b.SlotID,
		CustomerID:        b.CustomerID,
		Status:            string(b.Status),
		ServiceName:       b.ServiceName,
		ServicePriceCents: b.ServicePriceCents,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}
