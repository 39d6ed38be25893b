package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS parking_slots (
		slot_id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'FREE' CHECK (status IN ('FREE', 'RESERVED', 'OCCUPIED')),
		location_coordinates TEXT NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		reservation_id UUID PRIMARY KEY,
		slot_id TEXT NOT NULL REFERENCES parking_slots(slot_id),
		license_plate TEXT NOT NULL,
		reservation_time TIMESTAMP WITH TIME ZONE NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('ACTIVE', 'CANCELLED', 'COMPLETED')),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS uq_reservations_active_slot ON reservations(slot_id) WHERE status = 'ACTIVE'`,

	`CREATE TABLE IF NOT EXISTS parking_sessions (
		session_id UUID PRIMARY KEY,
		slot_id TEXT NOT NULL REFERENCES parking_slots(slot_id),
		reservation_id UUID REFERENCES reservations(reservation_id),
		license_plate TEXT NOT NULL,
		entry_time TIMESTAMP WITH TIME ZONE NOT NULL,
		exit_time TIMESTAMP WITH TIME ZONE,
		duration_minutes DOUBLE PRECISION,
		total_fee DOUBLE PRECISION,
		payment_status TEXT NOT NULL DEFAULT 'PENDING' CHECK (payment_status IN ('PENDING', 'PAID'))
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS uq_parking_sessions_open_slot ON parking_sessions(slot_id) WHERE exit_time IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_parking_sessions_open_plate ON parking_sessions(license_plate) WHERE exit_time IS NULL AND license_plate <> 'UNKNOWN'`,

	`CREATE TABLE IF NOT EXISTS pricing_rules (
		rule_id BIGSERIAL PRIMARY KEY,
		rate_per_hour DOUBLE PRECISION NOT NULL CHECK (rate_per_hour > 0),
		effective_from TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pricing_rules_effective_from ON pricing_rules(effective_from DESC)`,

	`CREATE TABLE IF NOT EXISTS sensor_logs (
		log_id BIGSERIAL PRIMARY KEY,
		slot_id TEXT NOT NULL,
		event_type TEXT NOT NULL CHECK (event_type IN ('ENTRY', 'EXIT')),
		raw_data TEXT NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sensor_logs_slot_time ON sensor_logs(slot_id, timestamp DESC)`,
}

// RunMigrations applies the idempotent schema statements in order.
func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			logger.Error("migration failed", zap.Int("index", i), zap.Error(err))
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	logger.Info("migrations completed", zap.Int("count", len(migrations)))
	return nil
}
