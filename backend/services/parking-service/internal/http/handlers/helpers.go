package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/service"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json", service.ErrInvalidInput)
	}
	return nil
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSlotUnavailable),
		errors.Is(err, service.ErrSlotInactive),
		errors.Is(err, service.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, service.ErrReservationNotFound),
		errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoReservation),
		errors.Is(err, service.ErrEarlyEntry):
		return http.StatusUnprocessableEntity
	case service.IsRetryable(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError answers with the mapped status. Infrastructure errors are logged
// and their details kept out of the response.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error(op+" failed", zap.Error(err))
		writeError(w, status, "internal server error")
	case http.StatusServiceUnavailable:
		logger.Warn(op+" failed transiently", zap.Error(err))
		writeError(w, status, "temporarily unavailable, retry later")
	default:
		writeError(w, status, err.Error())
	}
}
