package models

import "time"

// PricingRule is an hourly rate effective from a point in time. Rules are append-only;
// the one with the latest EffectiveFrom wins.
type PricingRule struct {
	ID            int64     `db:"rule_id" json:"ruleId"`
	RatePerHour   float64   `db:"rate_per_hour" json:"ratePerHour"`
	EffectiveFrom time.Time `db:"effective_from" json:"effectiveFrom"`
}

// Quote is a read-only fee computation for a session.
type Quote struct {
	SessionID       string    `json:"sessionId"`
	DurationMinutes float64   `json:"durationMinutes"`
	BilledHours     int64     `json:"billedHours"`
	RatePerHour     float64   `json:"ratePerHour"`
	Fee             float64   `json:"fee"`
	AsOf            time.Time `json:"asOf"`
}
