package store

import (
	"fmt"
	"sync"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// OrderStore keeps the record of every conditional order, with a primary
// index by order_id and a secondary index by account_id. It stores copies:
// the order book owns the live orders and saves a new copy on every status
// change.
type OrderStore struct {
	mu            sync.RWMutex
	persist       Persister
	orders        map[string]domain.ConditionalOrder
	accountOrders map[string][]string // account_id → order ids (append-only)
}

// NewOrderStore creates an empty OrderStore backed by p.
func NewOrderStore(p Persister) *OrderStore {
	if p == nil {
		p = Nop{}
	}
	return &OrderStore{
		persist:       p,
		orders:        make(map[string]domain.ConditionalOrder),
		accountOrders: make(map[string][]string),
	}
}

// Save writes the durable record first and then the in-memory copy. A
// failed durable write leaves the store untouched and returns an error
// wrapping domain.ErrSystemicFailure.
func (s *OrderStore) Save(o domain.ConditionalOrder) error {
	if err := s.persist.SaveOrder(o); err != nil {
		return fmt.Errorf("save order %s: %v: %w", o.OrderID, err, domain.ErrSystemicFailure)
	}
	s.put(o)
	return nil
}

// Restore loads a record read back from durable storage.
func (s *OrderStore) Restore(o domain.ConditionalOrder) {
	s.put(o)
}

func (s *OrderStore) put(o domain.ConditionalOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.OrderID]; !exists {
		s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o.OrderID)
	}
	s.orders[o.OrderID] = o
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (domain.ConditionalOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.ConditionalOrder{}, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByAccount returns orders for an account in reverse chronological
// order (newest first). If status is non-nil, only orders matching that
// status are included. Pagination is 1-based. Returns the matching orders
// for the requested page and the total count of matching orders (before
// pagination).
func (s *OrderStore) ListByAccount(accountID string, status *domain.OrderStatus, page, limit int) ([]domain.ConditionalOrder, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.accountOrders[accountID]

	filtered := make([]domain.ConditionalOrder, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		o := s.orders[ids[i]]
		if status != nil && o.Status != *status {
			continue
		}
		filtered = append(filtered, o)
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []domain.ConditionalOrder{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}
