package service

import (
	"strings"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/store"
)

// CreateAlertRequest represents the input for a price alert.
type CreateAlertRequest struct {
	AccountID string
	Symbol    string
	Direction domain.Direction
	Threshold int64 // spurs
}

// AlertService manages one-shot price alerts. Alerts are allowed on the
// account's own team instrument.
type AlertService struct {
	matcher    *engine.Matcher
	ledger     *ledger.Ledger
	registry   *market.Registry
	alertStore *store.AlertStore
}

func NewAlertService(matcher *engine.Matcher, l *ledger.Ledger, registry *market.Registry, alertStore *store.AlertStore) *AlertService {
	return &AlertService{
		matcher:    matcher,
		ledger:     l,
		registry:   registry,
		alertStore: alertStore,
	}
}

// CreateAlert validates the request and activates the alert. It fires on
// the first tick whose price move crosses the threshold.
func (s *AlertService) CreateAlert(req CreateAlertRequest) (domain.PriceAlert, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return domain.PriceAlert{}, domain.Invalid("account_id must match ^[a-zA-Z0-9_-]{1,64}$")
	}
	if _, err := s.ledger.Snapshot(req.AccountID); err != nil {
		return domain.PriceAlert{}, err
	}
	inst, err := s.registry.Get(strings.TrimSpace(req.Symbol))
	if err != nil {
		return domain.PriceAlert{}, err
	}

	return s.matcher.CreateAlert(domain.PriceAlert{
		AccountID: req.AccountID,
		Symbol:    inst.Symbol,
		Direction: req.Direction,
		Threshold: req.Threshold,
	})
}

// GetAlert retrieves an alert by ID.
func (s *AlertService) GetAlert(alertID string) (domain.PriceAlert, error) {
	return s.alertStore.Get(alertID)
}

// CancelAlert deactivates one of the account's active alerts.
func (s *AlertService) CancelAlert(accountID, alertID string) (domain.PriceAlert, error) {
	rec, err := s.alertStore.Get(alertID)
	if err != nil {
		return domain.PriceAlert{}, err
	}
	if rec.AccountID != accountID {
		return domain.PriceAlert{}, domain.ErrAlertNotFound
	}
	return s.matcher.CancelAlert(alertID)
}

// ListAlerts returns the account's alerts, newest first.
func (s *AlertService) ListAlerts(accountID string) ([]domain.PriceAlert, error) {
	if _, err := s.ledger.Snapshot(accountID); err != nil {
		return nil, err
	}
	return s.alertStore.ListByAccount(accountID), nil
}
