package repository

import (
	"context"
	"errors"
	"time"

	"smartpark/backend/services/parking-service/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict signals a uniqueness violation, e.g. a second ACTIVE reservation for a slot.
	ErrConflict = errors.New("repository: conflict")
	// ErrRetryable wraps transient store failures: timeouts, lost connections,
	// serialization failures and deadlocks.
	ErrRetryable = errors.New("repository: retryable")
)

// Queries is the set of reads and writes available both outside and inside a transaction.
type Queries interface {
	EnsureSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, slotID string) (*models.Slot, error)
	// GetSlotForUpdate locks the slot row until the surrounding transaction ends.
	GetSlotForUpdate(ctx context.Context, slotID string) (*models.Slot, error)
	ListSlots(ctx context.Context) ([]models.Slot, error)
	UpdateSlotStatus(ctx context.Context, slotID string, status models.SlotStatus) (*models.Slot, error)

	CreateReservation(ctx context.Context, r *models.Reservation) error
	GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID string) (*models.Reservation, error)
	FindActiveReservationBySlot(ctx context.Context, slotID string) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, reservationID string, status models.ReservationStatus) error

	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	FindOpenSessionBySlot(ctx context.Context, slotID string) (*models.Session, error)
	FindOpenSessionByPlate(ctx context.Context, plate string) (*models.Session, error)
	// CloseSession sets exit, duration, fee and PAID on a still-open session.
	// It returns ErrNotFound if the session does not exist or is already closed.
	CloseSession(ctx context.Context, sessionID string, exit time.Time, durationMinutes, fee float64) error

	LatestPricingRule(ctx context.Context) (*models.PricingRule, error)
	CreatePricingRule(ctx context.Context, rule *models.PricingRule) error

	AppendSensorLog(ctx context.Context, entry *models.SensorLog) error
	ListSensorLogs(ctx context.Context, slotID string, limit int) ([]models.SensorLog, error)
}

// Store is a transactional store. Writes performed through the Queries passed to fn
// commit together when fn returns nil and roll back otherwise.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
