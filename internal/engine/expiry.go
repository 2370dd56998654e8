package engine

import (
	"context"
	"sort"
	"sync"
	"time"
)

type expiryEntry struct {
	orderID   string
	symbol    string
	expiresAt time.Time
}

// ExpiryManager tracks pending limit orders sorted by expires_at and
// periodically expires orders whose time-to-live has passed, so lapsed
// orders release their reservation between ticks. Evaluate applies the
// same rule at tick time.
type ExpiryManager struct {
	interval time.Duration
	matcher  *Matcher
	active   []expiryEntry // sorted by expires_at ASC
	mu       sync.Mutex    // protects active
}

// NewExpiryManager creates a new ExpiryManager and subscribes it to the
// matcher, so orders filled, expired or failed by Evaluate stop being
// tracked. Call it before the matcher serves requests.
func NewExpiryManager(interval time.Duration, matcher *Matcher) *ExpiryManager {
	e := &ExpiryManager{
		interval: interval,
		matcher:  matcher,
		active:   make([]expiryEntry, 0),
	}
	if matcher != nil {
		matcher.onResolve = e.Remove
	}
	return e
}

// Add tracks an order's expiry, keeping expires_at ASC order. Orders
// without an expiry are ignored.
func (e *ExpiryManager) Add(orderID, symbol string, expiresAt *time.Time) {
	if expiresAt == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	at := *expiresAt
	idx := sort.Search(len(e.active), func(i int) bool {
		return e.active[i].expiresAt.After(at)
	})
	e.active = append(e.active, expiryEntry{})
	copy(e.active[idx+1:], e.active[idx:])
	e.active[idx] = expiryEntry{orderID: orderID, symbol: symbol, expiresAt: at}
}

// Remove stops tracking an order.
func (e *ExpiryManager) Remove(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, entry := range e.active {
		if entry.orderID == orderID {
			e.active = append(e.active[:i], e.active[i+1:]...)
			return
		}
	}
}

// Start launches a background goroutine that ticks at the configured
// interval and expires orders. It stops when ctx is cancelled.
func (e *ExpiryManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				e.tick(t)
			}
		}
	}()
}

// tick pops every entry with expires_at <= now and asks the matcher to
// expire it. The matcher re-checks the order under the book lock, so
// orders filled or cancelled in the meantime are skipped.
func (e *ExpiryManager) tick(now time.Time) int {
	e.mu.Lock()
	cutoff := 0
	for cutoff < len(e.active) && !e.active[cutoff].expiresAt.After(now) {
		cutoff++
	}
	due := make([]expiryEntry, cutoff)
	copy(due, e.active[:cutoff])
	e.active = e.active[cutoff:]
	e.mu.Unlock()

	expired := 0
	for _, entry := range due {
		if e.matcher.Expire(entry.symbol, entry.orderID, now) {
			expired++
		}
	}
	return expired
}

// ActiveOrderCount returns the number of orders currently tracked for
// expiration.
func (e *ExpiryManager) ActiveOrderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
