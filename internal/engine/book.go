package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// OrderBookEntry represents a single pending order resting on the book.
type OrderBookEntry struct {
	Price     int64
	CreatedAt time.Time
	OrderID   string
	Order     *domain.ConditionalOrder
}

// AlertEntry represents a single active alert waiting for a crossing.
type AlertEntry struct {
	Threshold int64
	CreatedAt time.Time
	AlertID   string
	Alert     *domain.PriceAlert
}

// buyLess orders buy limits by price descending, then created_at
// ascending, then order_id ascending. Ascending from Min() visits the
// orders that accept the highest prices first, so a walk can stop at the
// first limit below the quoted price.
func buyLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// sellLess orders sell limits by price ascending, then created_at
// ascending, then order_id ascending.
func sellLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// alertLess orders alerts by threshold ascending. A pivot carrying only a
// threshold sorts before every real entry at that threshold.
func alertLess(a, b AlertEntry) bool {
	if a.Threshold != b.Threshold {
		return a.Threshold < b.Threshold
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.AlertID < b.AlertID
}

// submissionLess is price-time priority without the price: earliest
// submitted first, ties broken by order_id.
func submissionLess(a, b OrderBookEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// OrderBook holds the pending limit orders and active alerts of a single
// instrument. Every read or write goes through mu, which serializes
// placement, cancellation, expiry and tick evaluation for the symbol.
type OrderBook struct {
	symbol string
	mu     sync.Mutex
	buys   *btree.BTreeG[OrderBookEntry]
	sells  *btree.BTreeG[OrderBookEntry]
	above  *btree.BTreeG[AlertEntry]
	below  *btree.BTreeG[AlertEntry]
	orders map[string]OrderBookEntry // order_id → entry
	alerts map[string]AlertEntry     // alert_id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		buys:   btree.NewG[OrderBookEntry](degree, buyLess),
		sells:  btree.NewG[OrderBookEntry](degree, sellLess),
		above:  btree.NewG[AlertEntry](degree, alertLess),
		below:  btree.NewG[AlertEntry](degree, alertLess),
		orders: make(map[string]OrderBookEntry),
		alerts: make(map[string]AlertEntry),
	}
}

// Symbol returns the instrument the book belongs to.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// InsertOrder adds a pending order to its side of the book.
func (ob *OrderBook) InsertOrder(o *domain.ConditionalOrder) {
	entry := OrderBookEntry{Price: o.LimitPrice, CreatedAt: o.CreatedAt, OrderID: o.OrderID, Order: o}
	if o.Side == domain.SideBuy {
		ob.buys.ReplaceOrInsert(entry)
	} else {
		ob.sells.ReplaceOrInsert(entry)
	}
	ob.orders[o.OrderID] = entry
}

// RemoveOrder deletes an order from the book by order ID using the
// secondary index.
func (ob *OrderBook) RemoveOrder(orderID string) {
	entry, ok := ob.orders[orderID]
	if !ok {
		return
	}
	delete(ob.orders, orderID)
	if entry.Order.Side == domain.SideBuy {
		ob.buys.Delete(entry)
	} else {
		ob.sells.Delete(entry)
	}
}

// Order returns the live pending order with the given ID.
func (ob *OrderBook) Order(orderID string) (*domain.ConditionalOrder, bool) {
	entry, ok := ob.orders[orderID]
	if !ok {
		return nil, false
	}
	return entry.Order, true
}

// Eligible returns every order that may execute at price, earliest
// submitted first.
func (ob *OrderBook) Eligible(price int64) []*domain.ConditionalOrder {
	var entries []OrderBookEntry
	ob.buys.Ascend(func(e OrderBookEntry) bool {
		if e.Price < price {
			return false
		}
		entries = append(entries, e)
		return true
	})
	ob.sells.Ascend(func(e OrderBookEntry) bool {
		if e.Price > price {
			return false
		}
		entries = append(entries, e)
		return true
	})

	sort.Slice(entries, func(i, j int) bool {
		return submissionLess(entries[i], entries[j])
	})
	out := make([]*domain.ConditionalOrder, len(entries))
	for i, e := range entries {
		out[i] = e.Order
	}
	return out
}

// Lapsed returns every order whose time-to-live has run out at now,
// earliest submitted first.
func (ob *OrderBook) Lapsed(now time.Time) []*domain.ConditionalOrder {
	var entries []OrderBookEntry
	for _, e := range ob.orders {
		if e.Order.Expired(now) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return submissionLess(entries[i], entries[j])
	})
	out := make([]*domain.ConditionalOrder, len(entries))
	for i, e := range entries {
		out[i] = e.Order
	}
	return out
}

// InsertAlert adds an active alert.
func (ob *OrderBook) InsertAlert(a *domain.PriceAlert) {
	entry := AlertEntry{Threshold: a.Threshold, CreatedAt: a.CreatedAt, AlertID: a.AlertID, Alert: a}
	if a.Direction == domain.DirectionAbove {
		ob.above.ReplaceOrInsert(entry)
	} else {
		ob.below.ReplaceOrInsert(entry)
	}
	ob.alerts[a.AlertID] = entry
}

// RemoveAlert deletes an alert by ID.
func (ob *OrderBook) RemoveAlert(alertID string) {
	entry, ok := ob.alerts[alertID]
	if !ok {
		return
	}
	delete(ob.alerts, alertID)
	if entry.Alert.Direction == domain.DirectionAbove {
		ob.above.Delete(entry)
	} else {
		ob.below.Delete(entry)
	}
}

// Alert returns the live active alert with the given ID.
func (ob *OrderBook) Alert(alertID string) (*domain.PriceAlert, bool) {
	entry, ok := ob.alerts[alertID]
	if !ok {
		return nil, false
	}
	return entry.Alert, true
}

// Crossed returns the alerts whose threshold lies between prev and next
// in their direction: above alerts with prev < threshold <= next, below
// alerts with next <= threshold < prev. An unchanged price crosses
// nothing.
func (ob *OrderBook) Crossed(prev, next int64) []*domain.PriceAlert {
	var out []*domain.PriceAlert
	collect := func(e AlertEntry) bool {
		out = append(out, e.Alert)
		return true
	}
	switch {
	case next > prev:
		ob.above.AscendRange(AlertEntry{Threshold: prev + 1}, AlertEntry{Threshold: next + 1}, collect)
	case next < prev:
		ob.below.AscendRange(AlertEntry{Threshold: next}, AlertEntry{Threshold: prev}, collect)
	}
	return out
}

// OrderCount returns the number of pending orders on the book.
func (ob *OrderBook) OrderCount() int {
	return len(ob.orders)
}

// AlertCount returns the number of active alerts on the book.
func (ob *OrderBook) AlertCount() int {
	return len(ob.alerts)
}

// BookManager is a thread-safe map of symbol → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}
