package service

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/market"
)

var (
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	symbolRegex    = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// RegisterAccountRequest represents the input for account registration.
type RegisterAccountRequest struct {
	AccountID string
	Team      string // optional instrument symbol
}

// BalanceResponse represents an account's cash and holdings with their
// reservations.
type BalanceResponse struct {
	AccountID     string
	Team          string
	Cash          int64
	ReservedCash  int64
	AvailableCash int64
	Holdings      []HoldingBalance
	UpdatedAt     time.Time
}

// HoldingBalance represents a single holding in the balance response.
type HoldingBalance struct {
	Symbol            string
	Quantity          int64
	ReservedQuantity  int64
	AvailableQuantity int64
}

// PortfolioResponse values every holding at the current price.
type PortfolioResponse struct {
	AccountID     string
	Cash          int64
	HoldingsValue int64
	NetWorth      int64
	Positions     []Position
}

// Position is one holding valued at the instrument's current price.
type Position struct {
	Symbol   string
	Quantity int64
	Price    int64
	Value    int64
}

// LeaderboardEntry ranks an account by net worth.
type LeaderboardEntry struct {
	Rank      int
	AccountID string
	Team      string
	NetWorth  int64
}

// AccountService handles registration and balance queries.
type AccountService struct {
	ledger          *ledger.Ledger
	registry        *market.Registry
	startingBalance int64
	logger          *zap.Logger
}

// NewAccountService creates a new AccountService. Every new account is
// granted startingBalance spurs.
func NewAccountService(l *ledger.Ledger, registry *market.Registry, startingBalance int64, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		ledger:          l,
		registry:        registry,
		startingBalance: startingBalance,
		logger:          logger.With(zap.String("component", "accounts")),
	}
}

// Register validates the request and opens an account with the starting
// grant.
func (s *AccountService) Register(req RegisterAccountRequest) (domain.AccountSnapshot, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return domain.AccountSnapshot{}, domain.Invalid("account_id must match ^[a-zA-Z0-9_-]{1,64}$")
	}

	team := strings.ToUpper(strings.TrimSpace(req.Team))
	if team != "" {
		inst, err := s.registry.Get(team)
		if err != nil {
			return domain.AccountSnapshot{}, domain.Invalid("team must be a listed instrument symbol, got " + req.Team)
		}
		team = inst.Symbol
	}

	snap, err := s.ledger.Open(req.AccountID, team, s.startingBalance)
	if err != nil {
		return domain.AccountSnapshot{}, err
	}
	s.logger.Info("account registered", zap.String("account_id", snap.AccountID), zap.String("team", team))
	return snap, nil
}

// Balance retrieves the account's current balance including reservations.
func (s *AccountService) Balance(accountID string) (*BalanceResponse, error) {
	snap, err := s.ledger.Snapshot(accountID)
	if err != nil {
		return nil, err
	}

	holdings := make([]HoldingBalance, 0, len(snap.Holdings))
	for symbol, h := range snap.Holdings {
		holdings = append(holdings, HoldingBalance{
			Symbol:            symbol,
			Quantity:          h.Quantity,
			ReservedQuantity:  h.ReservedQuantity,
			AvailableQuantity: h.Quantity - h.ReservedQuantity,
		})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].Symbol < holdings[j].Symbol })

	return &BalanceResponse{
		AccountID:     snap.AccountID,
		Team:          snap.Team,
		Cash:          snap.Cash,
		ReservedCash:  snap.ReservedCash,
		AvailableCash: snap.Cash - snap.ReservedCash,
		Holdings:      holdings,
		UpdatedAt:     snap.UpdatedAt,
	}, nil
}

// Portfolio values the account's holdings at current prices.
func (s *AccountService) Portfolio(accountID string) (*PortfolioResponse, error) {
	snap, err := s.ledger.Snapshot(accountID)
	if err != nil {
		return nil, err
	}
	return s.value(snap, s.registry.Prices()), nil
}

func (s *AccountService) value(snap domain.AccountSnapshot, prices map[string]int64) *PortfolioResponse {
	resp := &PortfolioResponse{
		AccountID: snap.AccountID,
		Cash:      snap.Cash,
		Positions: make([]Position, 0, len(snap.Holdings)),
	}
	for symbol, h := range snap.Holdings {
		price := prices[symbol]
		v, ok := domain.Notional(h.Quantity, price)
		if !ok {
			v = maxInt64
		}
		resp.Positions = append(resp.Positions, Position{
			Symbol:   symbol,
			Quantity: h.Quantity,
			Price:    price,
			Value:    v,
		})
		resp.HoldingsValue = saturatingAdd(resp.HoldingsValue, v)
	}
	sort.Slice(resp.Positions, func(i, j int) bool { return resp.Positions[i].Symbol < resp.Positions[j].Symbol })
	resp.NetWorth = saturatingAdd(resp.Cash, resp.HoldingsValue)
	return resp
}

// Leaderboard returns the top accounts by net worth. Ties rank by
// account ID.
func (s *AccountService) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	if limit < 1 || limit > 100 {
		return nil, domain.Invalid("limit must be between 1 and 100")
	}

	prices := s.registry.Prices()
	snaps := s.ledger.Snapshots()
	entries := make([]LeaderboardEntry, 0, len(snaps))
	for _, snap := range snaps {
		entries = append(entries, LeaderboardEntry{
			AccountID: snap.AccountID,
			Team:      snap.Team,
			NetWorth:  s.value(snap, prices).NetWorth,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].NetWorth != entries[j].NetWorth {
			return entries[i].NetWorth > entries[j].NetWorth
		}
		return entries[i].AccountID < entries[j].AccountID
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

const maxInt64 = int64(^uint64(0) >> 1)

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > maxInt64-b {
		return maxInt64
	}
	return a + b
}

// ownTeam reports whether symbol is the account's team instrument.
func ownTeam(l *ledger.Ledger, accountID, symbol string) (bool, error) {
	snap, err := l.Snapshot(accountID)
	if err != nil {
		return false, err
	}
	return snap.Team != "" && snap.Team == symbol, nil
}
