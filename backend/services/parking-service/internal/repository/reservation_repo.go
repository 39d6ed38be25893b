package repository

import (
	"context"

	"smartpark/backend/services/parking-service/internal/models"
)

const reservationColumns = `reservation_id, slot_id, license_plate, reservation_time, status, created_at`

func scanReservation(row rowScanner) (*models.Reservation, error) {
	var r models.Reservation
	if err := row.Scan(&r.ID, &r.SlotID, &r.LicensePlate, &r.ReservationTime, &r.Status, &r.CreatedAt); err != nil {
		return nil, classify(err)
	}
	return &r, nil
}

func (q *pgQueries) CreateReservation(ctx context.Context, r *models.Reservation) error {
	const query = `
		INSERT INTO reservations (reservation_id, slot_id, license_plate, reservation_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`
	err := q.db.QueryRowContext(ctx, query,
		r.ID,
		r.SlotID,
		r.LicensePlate,
		r.ReservationTime,
		r.Status,
	).Scan(&r.CreatedAt)
	return classify(err)
}

func (q *pgQueries) GetReservation(ctx context.Context, reservationID string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_id = $1`
	return scanReservation(q.db.QueryRowContext(ctx, query, reservationID))
}

func (q *pgQueries) GetReservationForUpdate(ctx context.Context, reservationID string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE reservation_id = $1 FOR UPDATE`
	return scanReservation(q.db.QueryRowContext(ctx, query, reservationID))
}

func (q *pgQueries) FindActiveReservationBySlot(ctx context.Context, slotID string) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE slot_id = $1 AND status = 'ACTIVE'
		LIMIT 1`
	return scanReservation(q.db.QueryRowContext(ctx, query, slotID))
}

// UpdateReservationStatus moves an ACTIVE reservation to status. Terminal rows are never
// updated; ErrNotFound is returned instead.
func (q *pgQueries) UpdateReservationStatus(ctx context.Context, reservationID string, status models.ReservationStatus) error {
	const query = `
		UPDATE reservations
		SET status = $2
		WHERE reservation_id = $1 AND status = 'ACTIVE'
	`
	result, err := q.db.ExecContext(ctx, query, reservationID, status)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result)
}
