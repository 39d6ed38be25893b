package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

// ReservationsHandler exposes reserve and cancel to the user app.
type ReservationsHandler struct {
	manager *service.ReservationManager
	logger  *zap.Logger
}

// NewReservationsHandler builds handler set.
func NewReservationsHandler(manager *service.ReservationManager, logger *zap.Logger) *ReservationsHandler {
	return &ReservationsHandler{manager: manager, logger: logger}
}

type createReservationRequest struct {
	SlotID          string     `json:"slotId"`
	LicensePlate    string     `json:"licensePlate"`
	ReservationTime *time.Time `json:"reservationTime,omitempty"`
}

// Create handles POST /api/reservations.
func (h *ReservationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReservationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, "reserve", err)
		return
	}

	var from time.Time
	if req.ReservationTime != nil {
		from = *req.ReservationTime
	}
	res, err := h.manager.ReserveFrom(r.Context(), req.SlotID, req.LicensePlate, from)
	if err != nil {
		writeServiceError(w, h.logger, "reserve", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Get handles GET /api/reservations/{reservationId}.
func (h *ReservationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.Get(r.Context(), chi.URLParam(r, "reservationId"))
	if err != nil {
		writeServiceError(w, h.logger, "get reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Cancel handles DELETE /api/reservations/{reservationId}.
func (h *ReservationsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reservationId")
	if err := h.manager.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, "cancel reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"reservationId": id,
		"status":        "CANCELLED",
	})
}
