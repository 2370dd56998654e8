package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/store"
)

// maxOrderTTL bounds explicit time-to-live values.
const maxOrderTTL = 30 * 24 * time.Hour

// PlaceOrderRequest represents the input for a conditional limit order.
type PlaceOrderRequest struct {
	AccountID  string
	Symbol     string
	Side       domain.Side
	Quantity   int64
	LimitPrice int64          // spurs per unit
	TTL        *time.Duration // nil uses the default
}

// OrderService handles order placement, retrieval, cancellation, and
// listing.
type OrderService struct {
	matcher    *engine.Matcher
	expiry     *engine.ExpiryManager
	ledger     *ledger.Ledger
	registry   *market.Registry
	orderStore *store.OrderStore
	defaultTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	matcher *engine.Matcher,
	expiry *engine.ExpiryManager,
	l *ledger.Ledger,
	registry *market.Registry,
	orderStore *store.OrderStore,
	defaultTTL time.Duration,
	logger *zap.Logger,
) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		matcher:    matcher,
		expiry:     expiry,
		ledger:     l,
		registry:   registry,
		orderStore: orderStore,
		defaultTTL: defaultTTL,
		logger:     logger.With(zap.String("component", "orders")),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PlaceOrder validates the request, reserves what the order needs and
// rests it on the instrument's book until a tick executes it, it is
// cancelled, or it expires.
func (s *OrderService) PlaceOrder(req PlaceOrderRequest) (domain.ConditionalOrder, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return domain.ConditionalOrder{}, domain.Invalid("account_id must match ^[a-zA-Z0-9_-]{1,64}$")
	}
	if !req.Side.Valid() {
		return domain.ConditionalOrder{}, domain.Invalid("side must be 'buy' or 'sell'")
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !symbolRegex.MatchString(symbol) {
		return domain.ConditionalOrder{}, domain.Invalid("symbol must match ^[A-Z]{1,10}$")
	}
	if req.Quantity <= 0 {
		return domain.ConditionalOrder{}, domain.Invalid("quantity must be a positive integer")
	}
	if req.LimitPrice <= 0 {
		return domain.ConditionalOrder{}, domain.Invalid("limit_price must be greater than 0")
	}

	ttl := s.defaultTTL
	if req.TTL != nil {
		ttl = *req.TTL
		if ttl <= 0 || ttl > maxOrderTTL {
			return domain.ConditionalOrder{}, domain.Invalid(fmt.Sprintf("ttl must be within (0, %s]", maxOrderTTL))
		}
	}

	inst, err := s.registry.Get(symbol)
	if err != nil {
		return domain.ConditionalOrder{}, err
	}
	own, err := ownTeam(s.ledger, req.AccountID, inst.Symbol)
	if err != nil {
		return domain.ConditionalOrder{}, err
	}
	if own {
		return domain.ConditionalOrder{}, domain.ErrOwnTeamTrade
	}

	expiresAt := s.now().Add(ttl)
	order, err := s.matcher.PlaceLimitOrder(domain.ConditionalOrder{
		AccountID:  req.AccountID,
		Symbol:     inst.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		ExpiresAt:  &expiresAt,
	})
	if err != nil {
		return domain.ConditionalOrder{}, err
	}

	s.expiry.Add(order.OrderID, order.Symbol, order.ExpiresAt)
	s.logger.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.String("account_id", order.AccountID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.Int64("quantity", order.Quantity),
		zap.Int64("limit_price", order.LimitPrice),
	)
	return order, nil
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(orderID string) (domain.ConditionalOrder, error) {
	return s.orderStore.Get(orderID)
}

// CancelOrder cancels one of the account's pending orders and releases
// its reservation. Orders owned by another account are reported as not
// found.
func (s *OrderService) CancelOrder(accountID, orderID string) (domain.ConditionalOrder, error) {
	rec, err := s.orderStore.Get(orderID)
	if err != nil {
		return domain.ConditionalOrder{}, err
	}
	if rec.AccountID != accountID {
		return domain.ConditionalOrder{}, domain.ErrOrderNotFound
	}

	order, err := s.matcher.CancelOrder(orderID)
	if err != nil {
		return domain.ConditionalOrder{}, err
	}
	s.expiry.Remove(orderID)
	return order, nil
}

// ListOrders returns a paginated list of orders for an account with
// optional status filtering.
func (s *OrderService) ListOrders(accountID string, status *domain.OrderStatus, page, limit int) ([]domain.ConditionalOrder, int, error) {
	if _, err := s.ledger.Snapshot(accountID); err != nil {
		return nil, 0, err
	}

	if status != nil && !domain.ValidOrderStatuses[*status] {
		return nil, 0, domain.Invalid(fmt.Sprintf(
			"Invalid status filter: '%s'. Must be one of: pending, filled, cancelled, expired, failed", *status))
	}
	if page < 1 {
		return nil, 0, domain.Invalid("page must be >= 1")
	}
	if limit < 1 || limit > 100 {
		return nil, 0, domain.Invalid("limit must be between 1 and 100")
	}

	orders, total := s.orderStore.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}
