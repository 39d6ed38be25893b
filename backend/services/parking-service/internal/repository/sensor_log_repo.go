package repository

import (
	"context"

	"smartpark/backend/services/parking-service/internal/models"
)

// AppendSensorLog stores a raw sensor message.
func (q *pgQueries) AppendSensorLog(ctx context.Context, entry *models.SensorLog) error {
	const query = `
		INSERT INTO sensor_logs (slot_id, event_type, raw_data, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING log_id
	`
	err := q.db.QueryRowContext(ctx, query, entry.SlotID, entry.EventType, entry.RawData, entry.Timestamp).Scan(&entry.ID)
	return classify(err)
}

// ListSensorLogs returns the latest entries for a slot, newest first.
func (q *pgQueries) ListSensorLogs(ctx context.Context, slotID string, limit int) ([]models.SensorLog, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT log_id, slot_id, event_type, raw_data, timestamp
		FROM sensor_logs
		WHERE slot_id = $1
		ORDER BY timestamp DESC, log_id DESC
		LIMIT $2
	`
	rows, err := q.db.QueryContext(ctx, query, slotID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var logs []models.SensorLog
	for rows.Next() {
		var l models.SensorLog
		if err := rows.Scan(&l.ID, &l.SlotID, &l.EventType, &l.RawData, &l.Timestamp); err != nil {
			return nil, classify(err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return logs, nil
}
