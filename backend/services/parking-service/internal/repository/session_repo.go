package repository

import (
	"context"
	"database/sql"
	"time"

	"smartpark/backend/services/parking-service/internal/models"
)

const sessionColumns = `session_id, slot_id, reservation_id, license_plate, entry_time, exit_time,
	duration_minutes, total_fee, payment_status`

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	if err := row.Scan(
		&s.ID,
		&s.SlotID,
		&s.ReservationID,
		&s.LicensePlate,
		&s.EntryTime,
		&s.ExitTime,
		&s.DurationMinutes,
		&s.TotalFee,
		&s.PaymentStatus,
	); err != nil {
		return nil, classify(err)
	}
	return &s, nil
}

func (q *pgQueries) CreateSession(ctx context.Context, s *models.Session) error {
	const query = `
		INSERT INTO parking_sessions (session_id, slot_id, reservation_id, license_plate, entry_time, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.db.ExecContext(ctx, query,
		s.ID,
		s.SlotID,
		s.ReservationID,
		s.LicensePlate,
		s.EntryTime,
		s.PaymentStatus,
	)
	return classify(err)
}

func (q *pgQueries) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE session_id = $1`
	return scanSession(q.db.QueryRowContext(ctx, query, sessionID))
}

func (q *pgQueries) FindOpenSessionBySlot(ctx context.Context, slotID string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE slot_id = $1 AND exit_time IS NULL
		LIMIT 1`
	return scanSession(q.db.QueryRowContext(ctx, query, slotID))
}

func (q *pgQueries) FindOpenSessionByPlate(ctx context.Context, plate string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE license_plate = $1 AND exit_time IS NULL
		ORDER BY entry_time DESC
		LIMIT 1`
	return scanSession(q.db.QueryRowContext(ctx, query, plate))
}

func (q *pgQueries) CloseSession(ctx context.Context, sessionID string, exit time.Time, durationMinutes, fee float64) error {
	const query = `
		UPDATE parking_sessions
		SET exit_time = $2,
		    duration_minutes = $3,
		    total_fee = $4,
		    payment_status = 'PAID'
		WHERE session_id = $1 AND exit_time IS NULL
	`
	result, err := q.db.ExecContext(ctx, query, sessionID, exit, durationMinutes, fee)
	if err != nil {
		return classify(err)
	}
	return expectOneRow(result)
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
