package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

// SessionsHandler serves live fee quotes and explicit checkout.
type SessionsHandler struct {
	sessions *service.SessionManager
	logger   *zap.Logger
}

// NewSessionsHandler builds handler set.
func NewSessionsHandler(sessions *service.SessionManager, logger *zap.Logger) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, logger: logger}
}

// Details handles GET /api/parking-details?licensePlate=.
func (h *SessionsHandler) Details(w http.ResponseWriter, r *http.Request) {
	plate := strings.TrimSpace(r.URL.Query().Get("licensePlate"))
	if plate == "" {
		writeError(w, http.StatusBadRequest, "licensePlate query parameter is required")
		return
	}
	details, err := h.sessions.Details(r.Context(), plate)
	if err != nil {
		writeServiceError(w, h.logger, "parking details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type checkoutRequest struct {
	LicensePlate string `json:"licensePlate"`
}

// Checkout handles POST /api/sessions/checkout.
func (h *SessionsHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, "checkout", err)
		return
	}
	if strings.TrimSpace(req.LicensePlate) == "" {
		writeError(w, http.StatusBadRequest, "licensePlate is required")
		return
	}
	receipt, err := h.sessions.Checkout(r.Context(), req.LicensePlate)
	if err != nil {
		writeServiceError(w, h.logger, "checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
