package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"kioskops-backend/internal/domain"
	"kioskops-backend/internal/service"
)

// RentalHandler serves the rental booking lifecycle endpoints
type RentalHandler struct {
	rentals service.RentalService
}

// NewRentalHandler creates a rental handler
func NewRentalHandler(rentals service.RentalService) *RentalHandler {
	return &RentalHandler{rentals: rentals}
}

type createBookingRequest struct {
	ItemID         int64  `json:"itemId"`
	PickupBoxID    int64  `json:"pickupBoxId"`
	ExpectedReturn string `json:"expectedReturn,omitempty"` // RFC 3339
	PaymentToken   string `json:"paymentToken,omitempty"`
}

type createBookingResponse struct {
	Booking        *domain.RentalBooking `json:"booking,omitempty"`
	RequiresAction bool                  `json:"requiresAction,omitempty"`
	ActionURL      string                `json:"actionUrl,omitempty"`
}

type confirmReturnRequest struct {
	ReturnBoxID int64  `json:"returnBoxId"`
	Condition   string `json:"condition"`
	Notes       string `json:"notes,omitempty"`
}

// CreateBooking handles POST /api/v1/rentals
func (h *RentalHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.InvalidArgument("error.request.malformed_body", ""))
		return
	}

	var expectedReturn *time.Time
	if req.ExpectedReturn != "" {
		t, err := time.Parse(time.RFC3339, req.ExpectedReturn)
		if err != nil {
			writeError(w, r, domain.InvalidArgument("error.booking.bad_expected_return", req.ExpectedReturn))
			return
		}
		expectedReturn = &t
	}

	booking, action, err := h.rentals.CreateBooking(r.Context(), actorFrom(r.Context()), service.CreateBookingInput{
		ItemID:         req.ItemID,
		PickupBoxID:    req.PickupBoxID,
		ExpectedReturn: expectedReturn,
		PaymentToken:   req.PaymentToken,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if action != nil {
		// The deposit hold needs a customer step first; nothing was booked.
		writeJSON(w, http.StatusAccepted, createBookingResponse{
			RequiresAction: action.RequiresAction,
			ActionURL:      action.ActionURL,
		})
		return
	}
	writeJSON(w, http.StatusCreated, createBookingResponse{Booking: booking})
}

// GetBooking handles GET /api/v1/rentals/{id}
func (h *RentalHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	booking, err := h.rentals.GetBooking(r.Context(), actorFrom(r.Context()), bookingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// ListBookings handles GET /api/v1/rentals
func (h *RentalHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	bookings, total, err := h.rentals.ListBookings(r.Context(), actorFrom(r.Context()), page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: bookings, TotalCount: total, Page: page, PageSize: pageSize})
}

// ConfirmPickup handles POST /api/v1/rentals/{id}/pickup
func (h *RentalHandler) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	bookingID := mux.Vars(r)["id"]
	if err := h.rentals.ConfirmPickup(r.Context(), actorFrom(r.Context()), bookingID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.BookingStatusPickedUp)})
}

// ConfirmReturn handles POST /api/v1/rentals/{id}/return
func (h *RentalHandler) ConfirmReturn(w http.ResponseWriter, r *http.Request) {
	var req confirmReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, domain.InvalidArgument("error.request.malformed_body", ""))
		return
	}

	bookingID := mux.Vars(r)["id"]
	err := h.rentals.ConfirmReturn(r.Context(), actorFrom(r.Context()), bookingID,
		req.ReturnBoxID, domain.ReturnCondition(req.Condition), req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.BookingStatusReturnedPendingInspection)})
}

// Cancel handles POST /api/v1/rentals/{id}/cancel
func (h *RentalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.InvalidArgument("error.request.malformed_body", ""))
			return
		}
	}

	bookingID := mux.Vars(r)["id"]
	if err := h.rentals.CancelBooking(r.Context(), actorFrom(r.Context()), bookingID, req.Reason); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.BookingStatusCancelled)})
}
