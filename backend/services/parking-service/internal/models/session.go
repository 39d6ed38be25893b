package models

import (
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

// PaymentStatus of a parking session.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// UnknownPlate is recorded for walk-in sessions whose plate was not read.
const UnknownPlate = "UNKNOWN"

// Session is the billable record of a vehicle's stay in a slot.
// A session with a null ExitTime is open.
type Session struct {
	ID              string        `db:"session_id" json:"sessionId"`
	SlotID          string        `db:"slot_id" json:"slotId"`
	ReservationID   null.String   `db:"reservation_id" json:"reservationId"`
	LicensePlate    string        `db:"license_plate" json:"licensePlate"`
	EntryTime       time.Time     `db:"entry_time" json:"entryTime"`
	ExitTime        null.Time     `db:"exit_time" json:"exitTime"`
	DurationMinutes null.Float    `db:"duration_minutes" json:"durationMinutes"`
	TotalFee        null.Float    `db:"total_fee" json:"totalFee"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"paymentStatus"`
}

// Open reports whether the vehicle is still parked.
func (s *Session) Open() bool {
	return !s.ExitTime.Valid
}

// NormalizePlate canonicalises a license plate for storage and comparison.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// DetailsResponse is the live fee quote for a parked vehicle.
type DetailsResponse struct {
	SessionID    string    `json:"sessionId"`
	SlotID       string    `json:"slotId"`
	LicensePlate string    `json:"licensePlate"`
	EntryTime    time.Time `json:"entryTime"`
	AsOfTime     time.Time `json:"asOfTime"`
	TotalFee     float64   `json:"totalFee"`
}

// ExitReceipt is returned when a session is closed by an explicit checkout.
type ExitReceipt struct {
	SessionID       string    `json:"sessionId"`
	SlotID          string    `json:"slotId"`
	LicensePlate    string    `json:"licensePlate"`
	EntryTime       time.Time `json:"entryTime"`
	ExitTime        time.Time `json:"exitTime"`
	DurationMinutes float64   `json:"durationMinutes"`
	TotalFee        float64   `json:"totalFee"`
	Currency        string    `json:"currency"`
}
