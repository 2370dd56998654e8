package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/market"
	"github.com/efreitasn/cogexchange/internal/store"
)

// TradeRequest represents an immediate trade at the current price.
type TradeRequest struct {
	AccountID string
	Symbol    string
	Side      domain.Side
	Quantity  int64
}

// TradeService executes immediate trades against the quoted price.
type TradeService struct {
	ledger   *ledger.Ledger
	registry *market.Registry
	fills    *store.FillStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewTradeService creates a new TradeService with the given dependencies.
func NewTradeService(l *ledger.Ledger, registry *market.Registry, fills *store.FillStore, logger *zap.Logger) *TradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradeService{
		ledger:   l,
		registry: registry,
		fills:    fills,
		logger:   logger.With(zap.String("component", "trades")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Trade buys or sells quantity units at the instrument's current price.
// Only unreserved cash and holdings can be used.
func (s *TradeService) Trade(req TradeRequest) (domain.Fill, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return domain.Fill{}, domain.Invalid("account_id must match ^[a-zA-Z0-9_-]{1,64}$")
	}
	if !req.Side.Valid() {
		return domain.Fill{}, domain.Invalid("side must be 'buy' or 'sell'")
	}
	if req.Quantity <= 0 {
		return domain.Fill{}, domain.Invalid("quantity must be a positive integer")
	}

	inst, err := s.registry.Get(strings.TrimSpace(req.Symbol))
	if err != nil {
		return domain.Fill{}, err
	}
	own, err := ownTeam(s.ledger, req.AccountID, inst.Symbol)
	if err != nil {
		return domain.Fill{}, err
	}
	if own {
		return domain.Fill{}, domain.ErrOwnTeamTrade
	}

	price := inst.Price()
	if err := s.ledger.ExecuteTrade(req.AccountID, inst.Symbol, req.Side, req.Quantity, price); err != nil {
		return domain.Fill{}, err
	}

	fill := &domain.Fill{
		FillID:     uuid.New().String(),
		AccountID:  req.AccountID,
		Symbol:     inst.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      price,
		ExecutedAt: s.now(),
	}
	s.fills.Append(fill)
	s.logger.Info("trade executed",
		zap.String("account_id", fill.AccountID),
		zap.String("symbol", fill.Symbol),
		zap.String("side", string(fill.Side)),
		zap.Int64("quantity", fill.Quantity),
		zap.Int64("price", fill.Price),
	)
	return *fill, nil
}

// Fills returns the account's executed trades, oldest first.
func (s *TradeService) Fills(accountID string) ([]domain.Fill, error) {
	if _, err := s.ledger.Snapshot(accountID); err != nil {
		return nil, err
	}
	fills := s.fills.GetByAccount(accountID)
	out := make([]domain.Fill, len(fills))
	for i, f := range fills {
		out[i] = *f
	}
	return out, nil
}
