package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/scheduler/internal/schedule"
)

// stubService scripts the engine surface so handler behavior can be asserted
// without a store.
type stubService struct {
	points  []schedule.TimePoint
	booking *schedule.Booking
	err     error

	lastRef schedule.SlotRef
	lastReq schedule.ReserveRequest
}

func (s *stubService) GetAvailableSlots(_ context.Context, _ uuid.UUID, _ time.Time, _ int) ([]schedule.TimePoint, error) {
	return s.points, s.err
}

func (s *stubService) Reserve(_ context.Context, ref schedule.SlotRef, req schedule.ReserveRequest) (*schedule.Booking, error) {
	s.lastRef = ref
	s.lastReq = req
	return s.booking, s.err
}

func (s *stubService) Cancel(context.Context, uuid.UUID) error { return s.err }

func (s *stubService) Extend(context.Context, uuid.UUID, schedule.TimeOfDay, *schedule.AddOn) (*schedule.Booking, error) {
	return s.booking, s.err
}

func (s *stubService) Confirm(context.Context, uuid.UUID) (*schedule.Booking, error) {
	return s.booking, s.err
}

func (s *stubService) SetStatus(context.Context, uuid.UUID, schedule.BookingStatus) (*schedule.Booking, error) {
	return s.booking, s.err
}

func (s *stubService) GetBooking(context.Context, uuid.UUID) (*schedule.Booking, error) {
	return s.booking, s.err
}

func testRouter(svc SchedulingService) http.Handler {
	return NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})
}

func testBooking() *schedule.Booking {
	return &schedule.Booking{
		ID:                uuid.New(),
		SlotID:            uuid.New(),
		CustomerID:        uuid.New(),
		Status:            schedule.StatusPending,
		ServiceName:       "Haircut",
		ServicePriceCents: 4500,
	}
}

func doRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAvailabilityHandler(t *testing.T) {
	svc := &stubService{points: []schedule.TimePoint{
		{Time: schedule.MustTimeOfDay("09:00"), Workers: []schedule.WorkerSummary{{ID: uuid.New(), Name: "Alice"}}},
	}}
	router := testRouter(svc)

	rec := doRequest(router, http.MethodGet,
		fmt.Sprintf("/merchants/%s/availability?date=2026-09-02&duration=30", uuid.New()), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-09-02", resp.Date)
	assert.Equal(t, 30, resp.DurationMinutes)
	require.Len(t, resp.Slots, 1)
	assert.Equal(t, schedule.MustTimeOfDay("09:00"), resp.Slots[0].Time)
}

func TestAvailabilityHandler_EmptyGridIsEmptyArray(t *testing.T) {
	router := testRouter(&stubService{})

	rec := doRequest(router, http.MethodGet,
		fmt.Sprintf("/merchants/%s/availability?date=2026-09-02", uuid.New()), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slots":[]`)
}

func TestAvailabilityHandler_BadInput(t *testing.T) {
	router := testRouter(&stubService{})

	tests := []struct {
		name string
		path string
	}{
		{"bad merchant id", "/merchants/not-a-uuid/availability?date=2026-09-02"},
		{"missing date", fmt.Sprintf("/merchants/%s/availability", uuid.New())},
		{"bad date", fmt.Sprintf("/merchants/%s/availability?date=02-09-2026", uuid.New())},
		{"bad duration", fmt.Sprintf("/merchants/%s/availability?date=2026-09-02&duration=abc", uuid.New())},
		{"negative duration", fmt.Sprintf("/merchants/%s/availability?date=2026-09-02&duration=-30", uuid.New())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodGet, tt.path, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestAvailabilityHandler_MerchantNotFound(t *testing.T) {
	router := testRouter(&stubService{err: schedule.ErrMerchantNotFound})

	rec := doRequest(router, http.MethodGet,
		fmt.Sprintf("/merchants/%s/availability?date=2026-09-02", uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateBookingHandler_PersistedSlot(t *testing.T) {
	booking := testBooking()
	svc := &stubService{booking: booking}
	router := testRouter(svc)

	slotID := uuid.New()
	rec := doRequest(router, http.MethodPost, "/bookings", CreateBookingRequest{
		SlotID:            slotID.String(),
		CustomerID:        booking.CustomerID.String(),
		ServiceName:       "Haircut",
		ServicePriceCents: 4500,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, booking.ID, resp.ID)
	assert.Equal(t, "pending", resp.Status)

	require.NotNil(t, svc.lastRef.SlotID)
	assert.Equal(t, slotID, *svc.lastRef.SlotID)
	assert.Equal(t, booking.CustomerID, svc.lastReq.CustomerID)
	assert.Equal(t, int64(4500), svc.lastReq.ServicePriceCents)
}

func TestCreateBookingHandler_VirtualSlot(t *testing.T) {
	booking := testBooking()
	svc := &stubService{booking: booking}
	router := testRouter(svc)

	merchantID := uuid.New()
	rec := doRequest(router, http.MethodPost, "/bookings", CreateBookingRequest{
		Virtual: &VirtualSlotRequest{
			MerchantID:      merchantID.String(),
			Date:            "2026-09-02",
			Start:           "09:15",
			DurationMinutes: 45,
		},
		CustomerID: booking.CustomerID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, svc.lastRef.Virtual)
	assert.Equal(t, merchantID, svc.lastRef.Virtual.MerchantID)
	assert.Equal(t, schedule.MustTimeOfDay("09:15"), svc.lastRef.Virtual.Start)
	assert.Equal(t, 45, svc.lastRef.Virtual.DurationMin)
	assert.Nil(t, svc.lastRef.Virtual.WorkerID)
}

func TestCreateBookingHandler_BadInput(t *testing.T) {
	router := testRouter(&stubService{booking: testBooking()})

	tests := []struct {
		name string
		body CreateBookingRequest
	}{
		{
			name: "missing customer id",
			body: CreateBookingRequest{SlotID: uuid.NewString()},
		},
		{
			name: "bad slot id",
			body: CreateBookingRequest{SlotID: "nope", CustomerID: uuid.NewString()},
		},
		{
			name: "neither slot nor virtual",
			body: CreateBookingRequest{CustomerID: uuid.NewString()},
		},
		{
			name: "virtual with bad start",
			body: CreateBookingRequest{
				CustomerID: uuid.NewString(),
				Virtual: &VirtualSlotRequest{
					MerchantID: uuid.NewString(), Date: "2026-09-02", Start: "9am", DurationMinutes: 30,
				},
			},
		},
		{
			name: "virtual with bad date",
			body: CreateBookingRequest{
				CustomerID: uuid.NewString(),
				Virtual: &VirtualSlotRequest{
					MerchantID: uuid.NewString(), Date: "today", Start: "09:00", DurationMinutes: 30,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/bookings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateBookingHandler_Conflict(t *testing.T) {
	router := testRouter(&stubService{err: schedule.ErrSlotAlreadyBooked})

	rec := doRequest(router, http.MethodPost, "/bookings", CreateBookingRequest{
		SlotID:     uuid.NewString(),
		CustomerID: uuid.NewString(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "slot_already_booked")
}

func TestCreateBookingHandler_NoEligibleWorkers(t *testing.T) {
	router := testRouter(&stubService{err: schedule.ErrNoEligibleWorkers})

	rec := doRequest(router, http.MethodPost, "/bookings", CreateBookingRequest{
		SlotID:     uuid.NewString(),
		CustomerID: uuid.NewString(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateBookingHandler_StoreUnavailable(t *testing.T) {
	router := testRouter(&stubService{err: fmt.Errorf("book slot: %w", schedule.ErrStoreUnavailable)})

	rec := doRequest(router, http.MethodPost, "/bookings", CreateBookingRequest{
		SlotID:     uuid.NewString(),
		CustomerID: uuid.NewString(),
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetBookingHandler(t *testing.T) {
	booking := testBooking()
	router := testRouter(&stubService{booking: booking})

	rec := doRequest(router, http.MethodGet, "/bookings/"+booking.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, booking.ID, resp.ID)
}

func TestGetBookingHandler_NotFound(t *testing.T) {
	router := testRouter(&stubService{err: schedule.ErrBookingNotFound})

	rec := doRequest(router, http.MethodGet, "/bookings/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBookingHandler(t *testing.T) {
	router := testRouter(&stubService{})

	rec := doRequest(router, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCancelBookingHandler_InvalidTransition(t *testing.T) {
	router := testRouter(&stubService{err: schedule.ErrInvalidStatusTransition})

	rec := doRequest(router, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExtendBookingHandler(t *testing.T) {
	booking := testBooking()
	booking.ServiceName = "Haircut + Beard Trim"
	router := testRouter(&stubService{booking: booking})

	rec := doRequest(router, http.MethodPost, "/bookings/"+booking.ID.String()+"/extend", ExtendBookingRequest{
		NewEnd: "10:00",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Haircut + Beard Trim", resp.ServiceName)
}

func TestExtendBookingHandler_BadNewEnd(t *testing.T) {
	router := testRouter(&stubService{booking: testBooking()})

	rec := doRequest(router, http.MethodPost, "/bookings/"+uuid.NewString()+"/extend", ExtendBookingRequest{
		NewEnd: "late",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtendBookingHandler_Conflict(t *testing.T) {
	router := testRouter(&stubService{err: schedule.ErrExtensionConflict})

	rec := doRequest(router, http.MethodPost, "/bookings/"+uuid.NewString()+"/extend", ExtendBookingRequest{
		NewEnd: "10:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "extension_conflict")
}

func TestUpdateStatusHandler(t *testing.T) {
	booking := testBooking()
	booking.Status = schedule.StatusConfirmed
	router := testRouter(&stubService{booking: booking})

	rec := doRequest(router, http.MethodPost, "/bookings/"+booking.ID.String()+"/status", UpdateStatusRequest{
		Status: "confirmed",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "confirmed", resp.Status)
}

func TestRequestIDPropagated(t *testing.T) {
	router := testRouter(&stubService{})

	rec := doRequest(router, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
