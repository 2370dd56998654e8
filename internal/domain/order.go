package domain

import "time"

// Side indicates whether an order buys or sells the instrument.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderStatus represents the lifecycle state of a conditional order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
	// OrderStatusFailed marks an order whose reserved execution was
	// rejected by the ledger. It is terminal and never retried.
	OrderStatusFailed OrderStatus = "failed"
)

// ValidOrderStatuses lists every order status, for filter validation.
var ValidOrderStatuses = map[OrderStatus]bool{
	OrderStatusPending:   true,
	OrderStatusFilled:    true,
	OrderStatusCancelled: true,
	OrderStatusExpired:   true,
	OrderStatusFailed:    true,
}

// ConditionalOrder is a limit order that waits for the simulator's quoted
// price to reach LimitPrice and then executes at that quoted price.
type ConditionalOrder struct {
	OrderID       string      `json:"order_id"`
	AccountID     string      `json:"account_id"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Quantity      int64       `json:"quantity"`
	LimitPrice    int64       `json:"limit_price"` // spurs per unit
	Status        OrderStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	ResolvedAt    *time.Time  `json:"resolved_at,omitempty"`
	FillPrice     int64       `json:"fill_price,omitempty"`
	FailureReason string      `json:"failure_reason,omitempty"`
}

// Pending reports whether the order still holds a reservation.
func (o *ConditionalOrder) Pending() bool {
	return o.Status == OrderStatusPending
}

// Reservation returns the amount held for the order: cash (spurs) for a
// buy, units of the instrument for a sell.
func (o *ConditionalOrder) Reservation() int64 {
	if o.Side == SideBuy {
		return o.Quantity * o.LimitPrice
	}
	return o.Quantity
}

// Eligible reports whether the order may execute at price.
func (o *ConditionalOrder) Eligible(price int64) bool {
	if o.Side == SideBuy {
		return o.LimitPrice >= price
	}
	return o.LimitPrice <= price
}

// Expired reports whether the order's time-to-live has lapsed at now.
func (o *ConditionalOrder) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// Resolve moves the order to a terminal status at t.
func (o *ConditionalOrder) Resolve(status OrderStatus, t time.Time) {
	o.Status = status
	o.ResolvedAt = &t
}
