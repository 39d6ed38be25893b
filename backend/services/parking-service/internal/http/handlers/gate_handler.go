package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/gate"
	"smartpark/backend/services/parking-service/internal/service"
)

// GateHandler forwards barrier commands to the gate topic.
type GateHandler struct {
	commander *gate.Commander
	logger    *zap.Logger
}

// NewGateHandler builds handler.
func NewGateHandler(commander *gate.Commander, logger *zap.Logger) *GateHandler {
	return &GateHandler{commander: commander, logger: logger}
}

type gateCommandRequest struct {
	Command string `json:"command"`
}

// Command handles POST /api/gates/{gateId}/commands.
func (h *GateHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req gateCommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, h.logger, "gate command", err)
		return
	}
	cmd, err := gate.ParseCommand(req.Command)
	if err != nil {
		writeServiceError(w, h.logger, "gate command", err)
		return
	}

	msg, err := h.commander.Send(r.Context(), chi.URLParam(r, "gateId"), cmd)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeServiceError(w, h.logger, "gate command", err)
			return
		}
		h.logger.Error("gate command not delivered", zap.Error(err))
		writeError(w, http.StatusBadGateway, "gate command not delivered")
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}
