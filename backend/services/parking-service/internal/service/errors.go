package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smartpark/backend/services/parking-service/internal/repository"
)

var (
	ErrSlotUnavailable     = errors.New("slot is already taken or invalid")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrSlotInactive        = errors.New("slot is not active")
	ErrReservationNotFound = errors.New("reservation not found or already inactive")
	ErrNoReservation       = errors.New("no active reservation found for this slot and license plate")
	ErrEarlyEntry          = errors.New("entry time is before reservation time")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session already closed")
	ErrNoActiveSession     = errors.New("no active parking session found for this license plate")
	ErrInvalidInput        = errors.New("invalid input")
)

// IsRetryable reports whether err is a transient infrastructure failure. Callers retry the
// whole operation after re-reading state; business rejections are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, repository.ErrRetryable) || errors.Is(err, context.DeadlineExceeded)
}

var tracer = otel.Tracer("smartpark/parking-service/service")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
