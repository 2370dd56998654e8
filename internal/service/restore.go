package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/market"
)

// SnapshotSource is durable state read back at start-up.
type SnapshotSource interface {
	LoadAccounts() ([]domain.AccountSnapshot, error)
	LoadInstrument(symbol string) (domain.InstrumentState, bool, error)
	LoadHistory(symbol string) ([]domain.PricePoint, error)
	LoadOrders() ([]domain.ConditionalOrder, error)
	LoadAlerts() ([]domain.PriceAlert, error)
}

// RestoreStats counts what Restore brought back.
type RestoreStats struct {
	Accounts      int
	Instruments   int
	PendingOrders int
	ActiveAlerts  int
}

// Restore rebuilds in-memory state from src: accounts with their
// reservations, instrument prices and history, pending orders (with
// their expiry) and active alerts. It must run before the scheduler and
// the HTTP server start.
func Restore(
	src SnapshotSource,
	l *ledger.Ledger,
	registry *market.Registry,
	matcher *engine.Matcher,
	expiry *engine.ExpiryManager,
	logger *zap.Logger,
) (RestoreStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var stats RestoreStats

	accounts, err := src.LoadAccounts()
	if err != nil {
		return stats, fmt.Errorf("load accounts: %w", err)
	}
	for _, a := range accounts {
		if err := l.Restore(a); err != nil {
			return stats, fmt.Errorf("restore account %s: %w", a.AccountID, err)
		}
		stats.Accounts++
	}

	for _, sym := range registry.Symbols() {
		st, ok, err := src.LoadInstrument(sym)
		if err != nil {
			return stats, fmt.Errorf("load instrument %s: %w", sym, err)
		}
		if !ok {
			continue
		}
		history, err := src.LoadHistory(sym)
		if err != nil {
			return stats, fmt.Errorf("load history %s: %w", sym, err)
		}
		if err := registry.Restore(sym, st, history); err != nil {
			return stats, fmt.Errorf("restore instrument %s: %w", sym, err)
		}
		stats.Instruments++
	}

	orders, err := src.LoadOrders()
	if err != nil {
		return stats, fmt.Errorf("load orders: %w", err)
	}
	for _, o := range orders {
		matcher.Restore(o)
		if !o.Pending() {
			continue
		}
		if _, err := registry.Get(o.Symbol); err != nil {
			logger.Warn("pending order on an unlisted instrument, it will only expire",
				zap.String("order_id", o.OrderID), zap.String("symbol", o.Symbol))
		}
		expiry.Add(o.OrderID, o.Symbol, o.ExpiresAt)
		stats.PendingOrders++
	}

	alerts, err := src.LoadAlerts()
	if err != nil {
		return stats, fmt.Errorf("load alerts: %w", err)
	}
	for _, a := range alerts {
		matcher.RestoreAlert(a)
		if a.Status == domain.AlertStatusActive {
			stats.ActiveAlerts++
		}
	}

	logger.Info("state restored",
		zap.Int("accounts", stats.Accounts),
		zap.Int("instruments", stats.Instruments),
		zap.Int("pending_orders", stats.PendingOrders),
		zap.Int("active_alerts", stats.ActiveAlerts),
	)
	return stats, nil
}
