package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SlotStatus is the occupancy state of a parking slot.
type SlotStatus string

const (
	SlotFree     SlotStatus = "FREE"
	SlotReserved SlotStatus = "RESERVED"
	SlotOccupied SlotStatus = "OCCUPIED"
)

// Valid reports whether s is one of the known slot statuses.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotFree, SlotReserved, SlotOccupied:
		return true
	}
	return false
}

// Coordinates locate a slot in the lot model used by the dashboard.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Value stores coordinates as JSON text.
func (c Coordinates) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads coordinates from JSON text. NULL and empty strings leave the zero value.
func (c *Coordinates) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = Coordinates{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("coordinates: unsupported source %T", src)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*c = Coordinates{}
		return nil
	}
	return json.Unmarshal(raw, c)
}

// Slot is a physical parking space.
type Slot struct {
	ID          string      `db:"slot_id" json:"slotId"`
	Status      SlotStatus  `db:"status" json:"status"`
	Coordinates Coordinates `db:"location_coordinates" json:"locationCoordinates"`
	IsActive    bool        `db:"is_active" json:"isActive"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// SlotUpdate is the real-time notification emitted on every occupancy transition.
type SlotUpdate struct {
	SlotID string     `json:"slotId"`
	Status SlotStatus `json:"status"`
}
