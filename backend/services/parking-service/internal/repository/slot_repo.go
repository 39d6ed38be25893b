package repository

import (
	"context"
	"fmt"

	"smartpark/backend/services/parking-service/internal/models"
)

const slotColumns = `slot_id, status, location_coordinates, is_active, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	var s models.Slot
	if err := row.Scan(&s.ID, &s.Status, &s.Coordinates, &s.IsActive, &s.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	return &s, nil
}

// EnsureSlot inserts the slot if it does not exist yet. Existing rows are left untouched.
func (q *pgQueries) EnsureSlot(ctx context.Context, slot *models.Slot) error {
	const query = `
		INSERT INTO parking_slots (slot_id, status, location_coordinates, is_active, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (slot_id) DO NOTHING
	`
	status := slot.Status
	if status == "" {
		status = models.SlotFree
	}
	_, err := q.db.ExecContext(ctx, query, slot.ID, status, slot.Coordinates, slot.IsActive)
	return classify(err)
}

func (q *pgQueries) GetSlot(ctx context.Context, slotID string) (*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots WHERE slot_id = $1`
	return scanSlot(q.db.QueryRowContext(ctx, query, slotID))
}

func (q *pgQueries) GetSlotForUpdate(ctx context.Context, slotID string) (*models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots WHERE slot_id = $1 FOR UPDATE`
	return scanSlot(q.db.QueryRowContext(ctx, query, slotID))
}

// ListSlots returns all slots ordered by identifier.
func (q *pgQueries) ListSlots(ctx context.Context) ([]models.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM parking_slots ORDER BY slot_id ASC`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return slots, nil
}

func (q *pgQueries) UpdateSlotStatus(ctx context.Context, slotID string, status models.SlotStatus) (*models.Slot, error) {
	query := `
		UPDATE parking_slots
		SET status = $2,
		    updated_at = NOW()
		WHERE slot_id = $1
		RETURNING ` + slotColumns
	return scanSlot(q.db.QueryRowContext(ctx, query, slotID, status))
}
