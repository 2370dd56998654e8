package store

import (
	"fmt"
	"sync"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// AlertStore keeps the record of every price alert, indexed by alert_id
// and by account_id. Like OrderStore it stores copies.
type AlertStore struct {
	mu            sync.RWMutex
	persist       Persister
	alerts        map[string]domain.PriceAlert
	accountAlerts map[string][]string // account_id → alert ids
}

// NewAlertStore creates an empty AlertStore backed by p.
func NewAlertStore(p Persister) *AlertStore {
	if p == nil {
		p = Nop{}
	}
	return &AlertStore{
		persist:       p,
		alerts:        make(map[string]domain.PriceAlert),
		accountAlerts: make(map[string][]string),
	}
}

// Save persists the alert and then records it in memory.
func (s *AlertStore) Save(a domain.PriceAlert) error {
	if err := s.persist.SaveAlert(a); err != nil {
		return fmt.Errorf("save alert %s: %v: %w", a.AlertID, err, domain.ErrSystemicFailure)
	}
	s.put(a)
	return nil
}

// Restore loads a record read back from durable storage.
func (s *AlertStore) Restore(a domain.PriceAlert) {
	s.put(a)
}

func (s *AlertStore) put(a domain.PriceAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[a.AlertID]; !exists {
		s.accountAlerts[a.AccountID] = append(s.accountAlerts[a.AccountID], a.AlertID)
	}
	s.alerts[a.AlertID] = a
}

// Get retrieves an alert by ID. It returns
// domain.ErrAlertNotFound if the alert does not exist.
func (s *AlertStore) Get(id string) (domain.PriceAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return domain.PriceAlert{}, domain.ErrAlertNotFound
	}
	return a, nil
}

// ListByAccount returns an account's alerts, newest first.
func (s *AlertStore) ListByAccount(accountID string) []domain.PriceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.accountAlerts[accountID]
	result := make([]domain.PriceAlert, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		result = append(result, s.alerts[ids[i]])
	}
	return result
}
