package domain

import "time"

// EventKind names a notification emitted to delivery collaborators.
type EventKind string

const (
	EventOrderFilled    EventKind = "order.filled"
	EventOrderExpired   EventKind = "order.expired"
	EventOrderCancelled EventKind = "order.cancelled"
	EventOrderFailed    EventKind = "order.failed"
	EventAlertFired     EventKind = "alert.fired"
	EventTickCompleted  EventKind = "tick.completed"
)

// ValidEventKinds lists the kinds an account may subscribe to.
var ValidEventKinds = map[EventKind]bool{
	EventOrderFilled:    true,
	EventOrderExpired:   true,
	EventOrderCancelled: true,
	EventOrderFailed:    true,
	EventAlertFired:     true,
}

// Event is a discrete, fire-and-forget notification.
type Event struct {
	Kind      EventKind      `json:"kind"`
	AccountID string         `json:"account_id,omitempty"`
	Symbol    string         `json:"symbol,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PriceUpdate is one instrument's price change within a tick.
type PriceUpdate struct {
	Symbol   string  `json:"symbol"`
	OldPrice int64   `json:"old_price"`
	NewPrice int64   `json:"new_price"`
	Delta    int64   `json:"delta"`
	Activity int64   `json:"activity"`
	Momentum float64 `json:"momentum"`
}

// TickResult summarizes one scheduler cycle.
type TickResult struct {
	Seq          uint64            `json:"seq"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Updates      []PriceUpdate     `json:"updates"`
	Failures     map[string]string `json:"failures,omitempty"` // symbol → reason
	Aborted      bool              `json:"aborted"`
	OrdersFilled int               `json:"orders_filled"`
	AlertsFired  int               `json:"alerts_fired"`
}
