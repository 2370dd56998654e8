package domain

import "time"

// Direction is the crossing that fires a price alert.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAbove || d == DirectionBelow
}

// AlertStatus represents the lifecycle state of a price alert.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusFired     AlertStatus = "fired"
	AlertStatusCancelled AlertStatus = "cancelled"
)

// PriceAlert is a one-shot notification that fires the first time the
// instrument's price crosses Threshold in Direction.
type PriceAlert struct {
	AlertID    string      `json:"alert_id"`
	AccountID  string      `json:"account_id"`
	Symbol     string      `json:"symbol"`
	Threshold  int64       `json:"threshold"`
	Direction  Direction   `json:"direction"`
	Status     AlertStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	FiredAt    *time.Time  `json:"fired_at,omitempty"`
	FiredPrice int64       `json:"fired_price,omitempty"`
}

// Crossed reports whether moving from prev to next crosses the threshold
// in the alert's direction. An unchanged price never crosses.
func (a *PriceAlert) Crossed(prev, next int64) bool {
	switch a.Direction {
	case DirectionAbove:
		return prev < a.Threshold && next >= a.Threshold
	case DirectionBelow:
		return prev > a.Threshold && next <= a.Threshold
	}
	return false
}
