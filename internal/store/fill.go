package store

import (
	"sync"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// FillStore is a thread-safe in-memory store for fills, indexed by
// account. Fills are append-only and chronological.
type FillStore struct {
	mu        sync.RWMutex
	byAccount map[string][]*domain.Fill // account_id → fills (chronological)
}

// NewFillStore creates an empty FillStore.
func NewFillStore() *FillStore {
	return &FillStore{
		byAccount: make(map[string][]*domain.Fill),
	}
}

// Append records a fill.
func (s *FillStore) Append(f *domain.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byAccount[f.AccountID] = append(s.byAccount[f.AccountID], f)
}

// GetByAccount returns all fills for an account in chronological order.
// Returns an empty slice if the account has none.
func (s *FillStore) GetByAccount(accountID string) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return copyFills(s.byAccount[accountID])
}

// copyFills returns a copy so callers cannot mutate the internal slice.
func copyFills(fills []*domain.Fill) []*domain.Fill {
	result := make([]*domain.Fill, len(fills))
	copy(result, fills)
	return result
}
