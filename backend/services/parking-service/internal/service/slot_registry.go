package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"smartpark/backend/services/parking-service/internal/metrics"
	"smartpark/backend/services/parking-service/internal/models"
	"smartpark/backend/services/parking-service/internal/repository"
)

const defaultLogLimit = 50

// SlotRegistry is the authoritative holder of slot occupancy. It does not judge whether
// a transition is legal; the orchestrating components do.
type SlotRegistry struct {
	store  repository.Store
	notify *broadcaster
	logger *zap.Logger
}

// NewSlotRegistry builds registry.
func NewSlotRegistry(store repository.Store, notifiers []Notifier, m *metrics.Metrics, logger *zap.Logger) *SlotRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotRegistry{
		store:  store,
		notify: &broadcaster{notifiers: notifiers, metrics: m, logger: logger},
		logger: logger,
	}
}

// Transition sets the slot status in its own transaction and notifies live clients.
func (r *SlotRegistry) Transition(ctx context.Context, slotID string, target models.SlotStatus) (*models.Slot, error) {
	var updated *models.Slot
	err := r.store.WithTx(ctx, func(q repository.Queries) error {
		var err error
		updated, err = r.transition(ctx, q, slotID, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.announce(ctx, updated)
	return updated, nil
}

// transition locks the slot row and writes target. The slot must exist and be active.
func (r *SlotRegistry) transition(ctx context.Context, q repository.Queries, slotID string, target models.SlotStatus) (*models.Slot, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown slot status %q", ErrInvalidInput, target)
	}
	slot, err := r.lock(ctx, q, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.IsActive {
		return nil, ErrSlotInactive
	}
	updated, err := q.UpdateSlotStatus(ctx, slotID, target)
	if err != nil {
		return nil, fmt.Errorf("update slot status: %w", err)
	}
	return updated, nil
}

func (r *SlotRegistry) lock(ctx context.Context, q repository.Queries, slotID string) (*models.Slot, error) {
	slot, err := q.GetSlotForUpdate(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	return slot, nil
}

// announce notifies live clients about committed slot changes.
func (r *SlotRegistry) announce(ctx context.Context, slots ...*models.Slot) {
	r.notify.publish(ctx, slots...)
}

// ListAll returns every slot ordered by identifier.
func (r *SlotRegistry) ListAll(ctx context.Context) ([]models.Slot, error) {
	slots, err := r.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	return slots, nil
}

// Get returns the slot or ErrSlotNotFound.
func (r *SlotRegistry) Get(ctx context.Context, slotID string) (*models.Slot, error) {
	slot, err := r.store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

// Logs returns the most recent sensor journal entries for a slot, newest first.
func (r *SlotRegistry) Logs(ctx context.Context, slotID string, limit int) ([]models.SensorLog, error) {
	if _, err := r.Get(ctx, slotID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultLogLimit {
		limit = defaultLogLimit
	}
	logs, err := r.store.ListSensorLogs(ctx, slotID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sensor logs: %w", err)
	}
	if logs == nil {
		logs = []models.SensorLog{}
	}
	return logs, nil
}

// Seed creates missing slots on a rows x cols grid named A1, A2, ... with coordinates
// spaced ten units apart. Existing slots keep their state.
func (r *SlotRegistry) Seed(ctx context.Context, rows, cols int) error {
	for row := 0; row < rows && row < 26; row++ {
		for col := 0; col < cols; col++ {
			slot := &models.Slot{
				ID:          fmt.Sprintf("%c%d", 'A'+row, col+1),
				Status:      models.SlotFree,
				Coordinates: models.Coordinates{X: float64(col * 10), Y: float64(row * 10)},
				IsActive:    true,
			}
			if err := r.store.EnsureSlot(ctx, slot); err != nil {
				return fmt.Errorf("seed slot %s: %w", slot.ID, err)
			}
		}
	}
	return nil
}
