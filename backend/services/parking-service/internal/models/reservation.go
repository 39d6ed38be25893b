package models

import "time"

// ReservationStatus tracks a reservation lifecycle. CANCELLED and COMPLETED are terminal.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationCompleted ReservationStatus = "COMPLETED"
)

// Terminal reports whether no further transition is allowed.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCancelled || s == ReservationCompleted
}

// Reservation is a user's claim on a slot.
type Reservation struct {
	ID              string            `db:"reservation_id" json:"reservationId"`
	SlotID          string            `db:"slot_id" json:"slotId"`
	LicensePlate    string            `db:"license_plate" json:"licensePlate"`
	ReservationTime time.Time         `db:"reservation_time" json:"reservationTime"`
	Status          ReservationStatus `db:"status" json:"status"`
	CreatedAt       time.Time         `db:"created_at" json:"createdAt"`
}
