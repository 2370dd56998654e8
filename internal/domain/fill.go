package domain

import "time"

// Fill records an executed trade against the simulator's quoted price.
// OrderID is empty for immediate (market) trades.
type Fill struct {
	FillID     string    `json:"fill_id"`
	OrderID    string    `json:"order_id,omitempty"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Quantity   int64     `json:"quantity"`
	Price      int64     `json:"price"` // spurs per unit
	ExecutedAt time.Time `json:"executed_at"`
}
