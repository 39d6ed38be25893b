package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

// ReservationManager creates, cancels and validates reservations. Each mutation runs in a
// single transaction that locks the slot row first.
type ReservationManager struct {
	store   repository.Store
	slots   *SlotRegistry
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewReservationManager builds manager.
func NewReservationManager(store repository.Store, slots *SlotRegistry, m *metrics.Metrics, logger *zap.Logger) *ReservationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationManager{
		store:   store,
		slots:   slots,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

// WithClock replaces the manager clock.
func (m *ReservationManager) WithClock(now func() time.Time) *ReservationManager {
	m.now = now
	return m
}

// Reserve claims a FREE slot starting now.
func (m *ReservationManager) Reserve(ctx context.Context, slotID, licensePlate string) (*models.Reservation, error) {
	return m.ReserveFrom(ctx, slotID, licensePlate, time.Time{})
}

// ReserveFrom claims a FREE slot for a visit starting at from. Zero or past values mean now.
// Of two concurrent calls for the same slot exactly one succeeds; the other gets
// ErrSlotUnavailable.
func (m *ReservationManager) ReserveFrom(ctx context.Context, slotID, licensePlate string, from time.Time) (res *models.Reservation, err error) {
	ctx, span := tracer.Start(ctx, "reservation.reserve")
	span.SetAttributes(attribute.String("slot.id", slotID))
	defer func() {
		m.metrics.Reservation("reserve", resultLabel(err))
		endSpan(span, err)
	}()

	slotID = strings.TrimSpace(slotID)
	plate := models.NormalizePlate(licensePlate)
	if slotID == "" || plate == "" {
		return nil, fmt.Errorf("%w: slotId and licensePlate are required", ErrInvalidInput)
	}
	now := m.now()
	if from.IsZero() || from.Before(now) {
		from = now
	}

	var slot *models.Slot
	err = m.store.WithTx(ctx, func(q repository.Queries) error {
		current, err := q.GetSlotForUpdate(ctx, slotID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("lock slot: %w", err)
		}
		if !current.IsActive || current.Status != models.SlotFree {
			return ErrSlotUnavailable
		}

		slot, err = m.slots.transition(ctx, q, slotID, models.SlotReserved)
		if err != nil {
			return err
		}

		res = &models.Reservation{
			ID:              uuid.NewString(),
			SlotID:          slotID,
			LicensePlate:    plate,
			ReservationTime: from.UTC(),
			Status:          models.ReservationActive,
		}
		if err := q.CreateReservation(ctx, res); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrSlotUnavailable
			}
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.slots.announce(ctx, slot)
	m.logger.Info("slot reserved",
		zap.String("reservation_id", res.ID),
		zap.String("slot_id", slotID),
		zap.String("license_plate", plate),
		zap.Time("reservation_time", res.ReservationTime),
	)
	return res, nil
}

// Cancel marks an ACTIVE reservation CANCELLED and frees its slot, atomically.
func (m *ReservationManager) Cancel(ctx context.Context, reservationID string) (err error) {
	ctx, span := tracer.Start(ctx, "reservation.cancel")
	span.SetAttributes(attribute.String("reservation.id", reservationID))
	defer func() {
		m.metrics.Reservation("cancel", resultLabel(err))
		endSpan(span, err)
	}()

	if _, parseErr := uuid.Parse(reservationID); parseErr != nil {
		return ErrReservationNotFound
	}

	var slot *models.Slot
	err = m.store.WithTx(ctx, func(q repository.Queries) error {
		res, err := q.GetReservation(ctx, reservationID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("load reservation: %w", err)
		}

		// Slot row first, as every writer does, then re-check the reservation under lock.
		if _, err := m.slots.lock(ctx, q, res.SlotID); err != nil {
			return err
		}
		res, err = q.GetReservationForUpdate(ctx, reservationID)
		if err != nil {
			return fmt.Errorf("lock reservation: %w", err)
		}
		if res.Status != models.ReservationActive {
			return ErrReservationNotFound
		}
		if err := q.UpdateReservationStatus(ctx, reservationID, models.ReservationCancelled); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("cancel reservation: %w", err)
		}
		slot, err = q.UpdateSlotStatus(ctx, res.SlotID, models.SlotFree)
		if err != nil {
			return fmt.Errorf("free slot: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.slots.announce(ctx, slot)
	m.logger.Info("reservation cancelled",
		zap.String("reservation_id", reservationID),
		zap.String("slot_id", slot.ID),
	)
	return nil
}

// ValidateEntry checks that the slot's ACTIVE reservation belongs to licensePlate and that
// its window has begun by entryTime.
func (m *ReservationManager) ValidateEntry(ctx context.Context, slotID, licensePlate string, entryTime time.Time) (*models.Reservation, error) {
	return m.validateEntry(ctx, m.store, slotID, licensePlate, entryTime)
}

func (m *ReservationManager) validateEntry(ctx context.Context, q repository.Queries, slotID, licensePlate string, entryTime time.Time) (*models.Reservation, error) {
	res, err := q.FindActiveReservationBySlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoReservation
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	if models.NormalizePlate(licensePlate) != res.LicensePlate {
		return nil, ErrNoReservation
	}
	if res.ReservationTime.After(entryTime) {
		return nil, ErrEarlyEntry
	}
	return res, nil
}

// Get returns a reservation by identifier.
func (m *ReservationManager) Get(ctx context.Context, reservationID string) (*models.Reservation, error) {
	if _, err := uuid.Parse(reservationID); err != nil {
		return nil, ErrReservationNotFound
	}
	res, err := m.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRetryable(err):
		return "retryable"
	default:
		return "rejected"
	}
}
