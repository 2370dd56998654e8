// Package engine holds pending conditional orders and alerts and resolves
// them against the simulator's quoted prices.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/store"
)

// EventSink receives order and alert notifications. Publish must not
// block; delivery is fire-and-forget.
type EventSink interface {
	Publish(e domain.Event)
}

type nopSink struct{}

func (nopSink) Publish(domain.Event) {}

// Evaluation is the outcome of resolving one instrument's book against a
// new price.
type Evaluation struct {
	Symbol  string
	Fills   []domain.Fill
	Expired []domain.ConditionalOrder
	Failed  []domain.ConditionalOrder
	Fired   []domain.PriceAlert
}

// Matcher resolves conditional orders and alerts. It never touches
// balances itself: every balance effect is a Ledger call made while the
// instrument's book lock is held, so placement, cancellation, expiry and
// evaluation of the same order cannot interleave.
type Matcher struct {
	books  *BookManager
	ledger *ledger.Ledger
	orders *store.OrderStore
	alerts *store.AlertStore
	fills  *store.FillStore
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time

	// onResolve is called with the ID of every order leaving the pending
	// state, while the book lock is held.
	onResolve func(orderID string)
}

// NewMatcher creates a new Matcher with the given dependencies. A nil
// sink discards events.
func NewMatcher(
	books *BookManager,
	l *ledger.Ledger,
	orders *store.OrderStore,
	alerts *store.AlertStore,
	fills *store.FillStore,
	sink EventSink,
	logger *zap.Logger,
) *Matcher {
	if sink == nil {
		sink = nopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		books:  books,
		ledger: l,
		orders: orders,
		alerts: alerts,
		fills:  fills,
		sink:   sink,
		logger: logger.With(zap.String("component", "matcher")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PlaceLimitOrder validates the order, reserves what it needs through the
// Ledger and rests it on the instrument's book.
//
// The caller provides AccountID, Symbol, Side, Quantity, LimitPrice and
// optionally ExpiresAt. The matcher assigns OrderID, CreatedAt and Status.
func (m *Matcher) PlaceLimitOrder(req domain.ConditionalOrder) (domain.ConditionalOrder, error) {
	if !req.Side.Valid() {
		return domain.ConditionalOrder{}, domain.Invalid("side must be 'buy' or 'sell'")
	}
	if req.Quantity <= 0 {
		return domain.ConditionalOrder{}, domain.Invalid("quantity must be a positive integer")
	}
	if req.LimitPrice <= 0 {
		return domain.ConditionalOrder{}, domain.Invalid("limit_price must be greater than 0")
	}

	book := m.books.GetOrCreate(req.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	if err := m.ledger.Reserve(req.AccountID, req.Symbol, req.Side, req.Quantity, req.LimitPrice); err != nil {
		return domain.ConditionalOrder{}, err
	}

	o := req
	o.OrderID = uuid.New().String()
	o.CreatedAt = m.now()
	o.Status = domain.OrderStatusPending
	o.ResolvedAt = nil
	o.FillPrice = 0
	o.FailureReason = ""

	if err := m.orders.Save(o); err != nil {
		if rerr := m.ledger.Release(o.AccountID, o.Symbol, o.Side, o.Quantity, o.LimitPrice); rerr != nil {
			m.logger.Error("failed to release reservation of unsaved order",
				zap.String("account_id", o.AccountID), zap.String("symbol", o.Symbol), zap.Error(rerr))
		}
		return domain.ConditionalOrder{}, err
	}

	book.InsertOrder(&o)
	return o, nil
}

// Restore rests a pending order read back from durable storage. Its
// reservation is already part of the restored account.
func (m *Matcher) Restore(o domain.ConditionalOrder) {
	m.orders.Restore(o)
	if !o.Pending() {
		return
	}
	book := m.books.GetOrCreate(o.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()
	book.InsertOrder(&o)
}

// CancelOrder releases a pending order's reservation and marks it
// cancelled. It returns domain.ErrAlreadyResolved for orders that are no
// longer pending.
func (m *Matcher) CancelOrder(orderID string) (domain.ConditionalOrder, error) {
	rec, err := m.orders.Get(orderID)
	if err != nil {
		return domain.ConditionalOrder{}, err
	}

	book := m.books.GetOrCreate(rec.Symbol)
	book.mu.Lock()
	o, ok := book.Order(orderID)
	if !ok {
		book.mu.Unlock()
		return domain.ConditionalOrder{}, domain.ErrAlreadyResolved
	}
	if err := m.ledger.Release(o.AccountID, o.Symbol, o.Side, o.Quantity, o.LimitPrice); err != nil {
		book.mu.Unlock()
		return domain.ConditionalOrder{}, err
	}
	m.resolve(book, o, domain.OrderStatusCancelled, m.now())
	out := *o
	book.mu.Unlock()

	m.sink.Publish(orderEvent(domain.EventOrderCancelled, out))
	return out, nil
}

// Expire resolves a single order if its time-to-live has lapsed at now.
// It reports whether the order was expired.
func (m *Matcher) Expire(symbol, orderID string, now time.Time) bool {
	book := m.books.GetOrCreate(symbol)
	book.mu.Lock()
	o, ok := book.Order(orderID)
	if !ok || !o.Expired(now) {
		book.mu.Unlock()
		return false
	}
	out, err := m.expire(book, o, now)
	kind := domain.EventOrderExpired
	if err != nil && !errors.Is(err, domain.ErrSystemicFailure) {
		out, kind, err = m.fail(book, o, err, now), domain.EventOrderFailed, nil
	}
	book.mu.Unlock()

	if err != nil {
		return false
	}
	m.sink.Publish(orderEvent(kind, out))
	return true
}

// expire releases the reservation and resolves o. The caller holds the
// book lock.
func (m *Matcher) expire(book *OrderBook, o *domain.ConditionalOrder, now time.Time) (domain.ConditionalOrder, error) {
	if err := m.ledger.Release(o.AccountID, o.Symbol, o.Side, o.Quantity, o.LimitPrice); err != nil {
		return domain.ConditionalOrder{}, err
	}
	m.resolve(book, o, domain.OrderStatusExpired, now)
	return *o, nil
}

// resolve moves o to a terminal status, takes it off the book and saves
// the record. A record that cannot be saved is logged; the in-memory book
// and the ledger are already consistent.
func (m *Matcher) resolve(book *OrderBook, o *domain.ConditionalOrder, status domain.OrderStatus, at time.Time) {
	o.Resolve(status, at)
	book.RemoveOrder(o.OrderID)
	if err := m.orders.Save(*o); err != nil {
		m.logger.Error("failed to save resolved order",
			zap.String("order_id", o.OrderID), zap.String("status", string(status)), zap.Error(err))
	}
	if m.onResolve != nil {
		m.onResolve(o.OrderID)
	}
}

// Evaluate resolves the instrument's book against a freshly committed
// price. In order it expires lapsed orders, executes every eligible order
// at newPrice (earliest submitted first) and fires every alert crossed by
// the move from prevPrice to newPrice.
//
// A systemic ledger failure stops the evaluation: orders not yet reached
// stay pending for the next tick and the error wraps
// domain.ErrSystemicFailure. Any other execution failure is an invariant
// violation and fails only that order.
func (m *Matcher) Evaluate(symbol string, prevPrice, newPrice int64) (Evaluation, error) {
	res := Evaluation{Symbol: symbol}
	var events []domain.Event

	book := m.books.GetOrCreate(symbol)
	book.mu.Lock()
	err := m.evaluateLocked(book, prevPrice, newPrice, &res, &events)
	book.mu.Unlock()

	for _, e := range events {
		m.sink.Publish(e)
	}
	return res, err
}

func (m *Matcher) evaluateLocked(book *OrderBook, prevPrice, newPrice int64, res *Evaluation, events *[]domain.Event) error {
	now := m.now()

	for _, o := range book.Lapsed(now) {
		out, err := m.expire(book, o, now)
		if errors.Is(err, domain.ErrSystemicFailure) {
			return fmt.Errorf("expire order %s: %w", o.OrderID, err)
		}
		if err != nil {
			out = m.fail(book, o, err, now)
			res.Failed = append(res.Failed, out)
			*events = append(*events, orderEvent(domain.EventOrderFailed, out))
			continue
		}
		res.Expired = append(res.Expired, out)
		*events = append(*events, orderEvent(domain.EventOrderExpired, out))
	}

	for _, o := range book.Eligible(newPrice) {
		err := m.ledger.SettleReserved(o.AccountID, o.Symbol, o.Side, o.Quantity, o.LimitPrice, newPrice)
		if errors.Is(err, domain.ErrSystemicFailure) {
			return fmt.Errorf("execute order %s: %w", o.OrderID, err)
		}
		if err != nil {
			out := m.fail(book, o, err, now)
			res.Failed = append(res.Failed, out)
			*events = append(*events, orderEvent(domain.EventOrderFailed, out))
			continue
		}

		o.FillPrice = newPrice
		m.resolve(book, o, domain.OrderStatusFilled, now)
		fill := domain.Fill{
			FillID:     uuid.New().String(),
			OrderID:    o.OrderID,
			AccountID:  o.AccountID,
			Symbol:     o.Symbol,
			Side:       o.Side,
			Quantity:   o.Quantity,
			Price:      newPrice,
			ExecutedAt: now,
		}
		m.fills.Append(&fill)
		res.Fills = append(res.Fills, fill)
		*events = append(*events, orderEvent(domain.EventOrderFilled, *o))
	}

	for _, a := range book.Crossed(prevPrice, newPrice) {
		if !a.Crossed(prevPrice, newPrice) {
			continue
		}
		a.Status = domain.AlertStatusFired
		firedAt := now
		a.FiredAt = &firedAt
		a.FiredPrice = newPrice
		book.RemoveAlert(a.AlertID)
		if err := m.alerts.Save(*a); err != nil {
			m.logger.Error("failed to save fired alert", zap.String("alert_id", a.AlertID), zap.Error(err))
		}
		res.Fired = append(res.Fired, *a)
		*events = append(*events, alertEvent(*a, prevPrice))
	}
	return nil
}

// fail marks an order whose reserved execution was rejected. Nothing is
// retried; the reservation is handed back if the ledger still holds it.
func (m *Matcher) fail(book *OrderBook, o *domain.ConditionalOrder, cause error, now time.Time) domain.ConditionalOrder {
	m.logger.Error("reserved order failed to execute",
		zap.String("order_id", o.OrderID),
		zap.String("account_id", o.AccountID),
		zap.String("symbol", o.Symbol),
		zap.String("side", string(o.Side)),
		zap.Int64("quantity", o.Quantity),
		zap.Int64("limit_price", o.LimitPrice),
		zap.Error(cause),
	)
	if err := m.ledger.Release(o.AccountID, o.Symbol, o.Side, o.Quantity, o.LimitPrice); err != nil {
		m.logger.Error("failed to release reservation of failed order", zap.String("order_id", o.OrderID), zap.Error(err))
	}
	o.FailureReason = cause.Error()
	m.resolve(book, o, domain.OrderStatusFailed, now)
	return *o
}

// CreateAlert registers an active alert on the instrument's book.
func (m *Matcher) CreateAlert(req domain.PriceAlert) (domain.PriceAlert, error) {
	if req.Threshold <= 0 {
		return domain.PriceAlert{}, domain.Invalid("threshold must be greater than 0")
	}
	if !req.Direction.Valid() {
		return domain.PriceAlert{}, domain.Invalid("direction must be 'above' or 'below'")
	}

	book := m.books.GetOrCreate(req.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	a := req
	a.AlertID = uuid.New().String()
	a.CreatedAt = m.now()
	a.Status = domain.AlertStatusActive
	a.FiredAt = nil
	a.FiredPrice = 0

	if err := m.alerts.Save(a); err != nil {
		return domain.PriceAlert{}, err
	}
	book.InsertAlert(&a)
	return a, nil
}

// RestoreAlert rests an alert read back from durable storage.
func (m *Matcher) RestoreAlert(a domain.PriceAlert) {
	m.alerts.Restore(a)
	if a.Status != domain.AlertStatusActive {
		return
	}
	book := m.books.GetOrCreate(a.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()
	book.InsertAlert(&a)
}

// CancelAlert deactivates an active alert.
func (m *Matcher) CancelAlert(alertID string) (domain.PriceAlert, error) {
	rec, err := m.alerts.Get(alertID)
	if err != nil {
		return domain.PriceAlert{}, err
	}

	book := m.books.GetOrCreate(rec.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	a, ok := book.Alert(alertID)
	if !ok {
		return domain.PriceAlert{}, domain.ErrAlreadyResolved
	}
	updated := *a
	updated.Status = domain.AlertStatusCancelled
	if err := m.alerts.Save(updated); err != nil {
		return domain.PriceAlert{}, err
	}
	book.RemoveAlert(alertID)
	return updated, nil
}

// PendingCount returns the number of pending orders and active alerts on
// the instrument's book.
func (m *Matcher) PendingCount(symbol string) (orders, alerts int) {
	book := m.books.GetOrCreate(symbol)
	book.mu.Lock()
	defer book.mu.Unlock()
	return book.OrderCount(), book.AlertCount()
}

func orderEvent(kind domain.EventKind, o domain.ConditionalOrder) domain.Event {
	details := map[string]any{
		"order_id":    o.OrderID,
		"side":        o.Side,
		"quantity":    o.Quantity,
		"limit_price": o.LimitPrice,
		"status":      o.Status,
	}
	if o.FillPrice > 0 {
		details["fill_price"] = o.FillPrice
		details["fill_price_cogs"] = domain.FormatCogs(o.FillPrice)
	}
	if o.FailureReason != "" {
		details["reason"] = o.FailureReason
	}
	ts := time.Now().UTC()
	if o.ResolvedAt != nil {
		ts = *o.ResolvedAt
	}
	return domain.Event{
		Kind:      kind,
		AccountID: o.AccountID,
		Symbol:    o.Symbol,
		Details:   details,
		Timestamp: ts,
	}
}

func alertEvent(a domain.PriceAlert, prevPrice int64) domain.Event {
	return domain.Event{
		Kind:      domain.EventAlertFired,
		AccountID: a.AccountID,
		Symbol:    a.Symbol,
		Details: map[string]any{
			"alert_id":   a.AlertID,
			"direction":  a.Direction,
			"threshold":  a.Threshold,
			"prev_price": prevPrice,
			"price":      a.FiredPrice,
			"price_cogs": domain.FormatCogs(a.FiredPrice),
		},
		Timestamp: *a.FiredAt,
	}
}
