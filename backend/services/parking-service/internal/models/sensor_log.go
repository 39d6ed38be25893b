package models

import "time"

// SensorEventType is the journal classification of a sensor signal.
type SensorEventType string

const (
	SensorEntry SensorEventType = "ENTRY"
	SensorExit  SensorEventType = "EXIT"
)

// SensorLog is a write-once journal row kept for audit and replay.
type SensorLog struct {
	ID        int64           `db:"log_id" json:"logId"`
	SlotID    string          `db:"slot_id" json:"slotId"`
	EventType SensorEventType `db:"event_type" json:"eventType"`
	RawData   string          `db:"raw_data" json:"rawData"`
	Timestamp time.Time       `db:"timestamp" json:"timestamp"`
}

// OccupancyStatus is the closed set of states a sensor may report.
type OccupancyStatus string

const (
	OccupancyOccupied OccupancyStatus = "OCCUPIED"
	OccupancyFree     OccupancyStatus = "FREE"
)

// EventType maps a sensor reading to its journal classification.
func (s OccupancyStatus) EventType() SensorEventType {
	if s == OccupancyOccupied {
		return SensorEntry
	}
	return SensorExit
}

// SensorEvent is a parsed occupancy signal from either broker transport.
type SensorEvent struct {
	SlotID       string
	Status       OccupancyStatus
	Timestamp    time.Time
	LicensePlate string
	Source       string
	Raw          []byte
}
