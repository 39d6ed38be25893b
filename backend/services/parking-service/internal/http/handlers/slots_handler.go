package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

// SlotsHandler serves the dashboard's slot reads.
type SlotsHandler struct {
	registry *service.SlotRegistry
	logger   *zap.Logger
}

// NewSlotsHandler builds handler set.
func NewSlotsHandler(registry *service.SlotRegistry, logger *zap.Logger) *SlotsHandler {
	return &SlotsHandler{registry: registry, logger: logger}
}

// List handles GET /api/slots.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	slots, err := h.registry.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list slots", err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// Get handles GET /api/slots/{slotId}.
func (h *SlotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	slot, err := h.registry.Get(r.Context(), chi.URLParam(r, "slotId"))
	if err != nil {
		writeServiceError(w, h.logger, "get slot", err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}

// Logs handles GET /api/slots/{slotId}/logs?limit=N.
func (h *SlotsHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	logs, err := h.registry.Logs(r.Context(), chi.URLParam(r, "slotId"), limit)
	if err != nil {
		writeServiceError(w, h.logger, "list sensor logs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slotId": chi.URLParam(r, "slotId"),
		"logs":   logs,
	})
}
