package domain

import (
	"testing"
	"time"
)

func TestConditionalOrder_Reservation(t *testing.T) {
	buy := &ConditionalOrder{Side: SideBuy, Quantity: 10, LimitPrice: 60}
	if got := buy.Reservation(); got != 600 {
		t.Errorf("buy Reservation() = %d, want 600", got)
	}

	sell := &ConditionalOrder{Side: SideSell, Quantity: 7, LimitPrice: 60}
	if got := sell.Reservation(); got != 7 {
		t.Errorf("sell Reservation() = %d, want 7", got)
	}
}

func TestConditionalOrder_Eligible(t *testing.T) {
	tests := []struct {
		name  string
		side  Side
		limit int64
		price int64
		want  bool
	}{
		{"buy below limit", SideBuy, 60, 55, true},
		{"buy at limit", SideBuy, 60, 60, true},
		{"buy above limit", SideBuy, 60, 61, false},
		{"sell above limit", SideSell, 60, 70, true},
		{"sell at limit", SideSell, 60, 60, true},
		{"sell below limit", SideSell, 60, 59, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &ConditionalOrder{Side: tt.side, LimitPrice: tt.limit}
			if got := o.Eligible(tt.price); got != tt.want {
				t.Errorf("Eligible(%d) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestConditionalOrder_Expired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	if (&ConditionalOrder{}).Expired(now) {
		t.Error("order without ExpiresAt should never expire")
	}
	if !(&ConditionalOrder{ExpiresAt: &past}).Expired(now) {
		t.Error("order past ExpiresAt should be expired")
	}
	if !(&ConditionalOrder{ExpiresAt: &now}).Expired(now) {
		t.Error("order at ExpiresAt should be expired")
	}
	if (&ConditionalOrder{ExpiresAt: &future}).Expired(now) {
		t.Error("order before ExpiresAt should not be expired")
	}
}

func TestConditionalOrder_Resolve(t *testing.T) {
	o := &ConditionalOrder{Status: OrderStatusPending}
	now := time.Now()

	o.Resolve(OrderStatusFilled, now)

	if o.Pending() {
		t.Error("resolved order should not be pending")
	}
	if o.ResolvedAt == nil || !o.ResolvedAt.Equal(now) {
		t.Errorf("ResolvedAt = %v, want %v", o.ResolvedAt, now)
	}
}
