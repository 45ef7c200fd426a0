package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotwise/scheduler/internal/schedule"
)

const dateLayout = "2006-01-02"

func availabilityHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := uuid.Parse(chi.URLParam(r, "merchantID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_merchant_id", "merchantID must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		duration := 30
		if v := r.URL.Query().Get("duration"); v != "" {
			d, err := strconv.Atoi(v)
			if err != nil || d <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive integer of minutes")
				return
			}
			duration = d
		}

		points, err := svc.GetAvailableSlots(r.Context(), merchantID, date, duration)
		if err != nil {
			handleAvailabilityError(w, err)
			return
		}

		if points == nil {
			points = []schedule.TimePoint{}
		}
		writeJSON(w, http.StatusOK, AvailabilityResponse{
			MerchantID:      merchantID,
			Date:            date.Format(dateLayout),
			DurationMinutes: duration,
			Slots:           points,
		})
	}
}

func createBookingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		customerID, err := uuid.Parse(req.CustomerID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_customer_id", "customer_id must be a valid UUID")
			return
		}

		ref, errCode, errDetail := parseSlotRef(req)
		if errCode != "" {
			writeError(w, http.StatusBadRequest, errCode, errDetail)
			return
		}

		booking, err := svc.Reserve(r.Context(), ref, schedule.ReserveRequest{
			CustomerID:        customerID,
			ServiceName:       req.ServiceName,
			ServicePriceCents: req.ServicePriceCents,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, bookingResponse(booking))
	}
}

func parseSlotRef(req CreateBookingRequest) (schedule.SlotRef, string, string) {
	switch {
	case req.SlotID != "":
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			return schedule.SlotRef{}, "invalid_slot_id", "slot_id must be a valid UUID"
		}
		return schedule.SlotRef{SlotID: &slotID}, "", ""

	case req.Virtual != nil:
		merchantID, err := uuid.Parse(req.Virtual.MerchantID)
		if err != nil {
			return schedule.SlotRef{}, "invalid_merchant_id", "virtual.merchant_id must be a valid UUID"
		}
		date, err := time.Parse(dateLayout, req.Virtual.Date)
		if err != nil {
			return schedule.SlotRef{}, "invalid_date", "virtual.date must be YYYY-MM-DD"
		}
		start, err := schedule.ParseTimeOfDay(req.Virtual.Start)
		if err != nil {
			return schedule.SlotRef{}, "invalid_start", "virtual.start must be HH:MM"
		}

		vs := schedule.VirtualSlot{
			MerchantID:  merchantID,
			Date:        date,
			Start:       start,
			DurationMin: req.Virtual.DurationMinutes,
		}
		if req.Virtual.WorkerID != "" {
			workerID, err := uuid.Parse(req.Virtual.WorkerID)
			if err != nil {
				return schedule.SlotRef{}, "invalid_worker_id", "virtual.worker_id must be a valid UUID"
			}
			vs.WorkerID = &workerID
		}
		return schedule.SlotRef{Virtual: &vs}, "", ""

	default:
		return schedule.SlotRef{}, "missing_slot", "either slot_id or virtual must be provided"
	}
}

func getBookingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		booking, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookingResponse(booking))
	}
}

func confirmBookingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		booking, err := svc.Confirm(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookingResponse(booking))
	}
}

func cancelBookingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			handleBookingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func extendBookingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req ExtendBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newEnd, err := schedule.ParseTimeOfDay(req.NewEnd)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_new_end", "new_end must be HH:MM")
			return
		}

		var addOn *schedule.AddOn
		if req.AddOn != nil {
			addOn = &schedule.AddOn{Name: req.AddOn.Name, PriceCents: req.AddOn.PriceCents}
		}

		booking, err := svc.Extend(r.Context(), id, newEnd, addOn)
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookingResponse(booking))
	}
}

func updateStatusHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking, err := svc.SetStatus(r.Context(), id, schedule.BookingStatus(req.Status))
		if err != nil {
			handleBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, bookingResponse(booking))
	}
}

func handleAvailabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrMerchantNotFound):
		writeError(w, http.StatusNotFound, "merchant_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schedule.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "backing store unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, schedule.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, schedule.ErrMerchantNotFound):
		writeError(w, http.StatusNotFound, "merchant_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, schedule.ErrExtensionConflict):
		writeError(w, http.StatusConflict, "extension_conflict", err.Error())
	case errors.Is(err, schedule.ErrNoEligibleWorkers):
		writeError(w, http.StatusConflict, "no_eligible_workers", err.Error())
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, schedule.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "backing store unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
