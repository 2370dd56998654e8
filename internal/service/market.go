package service

import (
	"strings"
	"time"

	"github.com/efreitasn/cogexchange/internal/activity"
	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/engine"
	"github.com/efreitasn/cogexchange/internal/market"
)

// InstrumentView is the public view of an instrument.
type InstrumentView struct {
	Symbol        string
	Name          string
	Volatility    domain.Volatility
	Baseline      int64
	Price         int64
	Momentum      float64
	Activity      int64
	UpdatedAt     time.Time
	PendingOrders int
	ActiveAlerts  int
}

// RecordActivityRequest is one chat message forwarded by the ingester.
// Symbol may be empty, in which case [TAG] markers in Content pick the
// instruments.
type RecordActivityRequest struct {
	UserID  string
	Symbol  string
	Content string
}

// RecordActivityResponse lists the instruments the message counted for.
type RecordActivityResponse struct {
	Counted []string
	Ignored []string
}

// MarketService answers instrument, history and activity queries.
type MarketService struct {
	registry *market.Registry
	matcher  *engine.Matcher
	activity *activity.Aggregator
}

func NewMarketService(registry *market.Registry, matcher *engine.Matcher, agg *activity.Aggregator) *MarketService {
	return &MarketService{
		registry: registry,
		matcher:  matcher,
		activity: agg,
	}
}

// Instruments returns every listed instrument in catalog order.
func (s *MarketService) Instruments() []InstrumentView {
	insts := s.registry.List()
	out := make([]InstrumentView, 0, len(insts))
	for _, inst := range insts {
		out = append(out, s.view(inst))
	}
	return out
}

// Instrument returns one instrument.
func (s *MarketService) Instrument(symbol string) (InstrumentView, error) {
	inst, err := s.registry.Get(symbol)
	if err != nil {
		return InstrumentView{}, err
	}
	return s.view(inst), nil
}

func (s *MarketService) view(inst *domain.Instrument) InstrumentView {
	st := inst.State()
	orders, alerts := s.matcher.PendingCount(inst.Symbol)
	return InstrumentView{
		Symbol:        inst.Symbol,
		Name:          inst.Name,
		Volatility:    inst.Volatility,
		Baseline:      inst.Baseline,
		Price:         st.Price,
		Momentum:      st.Momentum,
		Activity:      st.Activity,
		UpdatedAt:     st.UpdatedAt,
		PendingOrders: orders,
		ActiveAlerts:  alerts,
	}
}

// History returns up to limit of the most recent price points, oldest
// first.
func (s *MarketService) History(symbol string, limit int) ([]domain.PricePoint, error) {
	if limit < 1 || limit > 1000 {
		return nil, domain.Invalid("limit must be between 1 and 1000")
	}
	return s.registry.History(symbol, limit)
}

// RecordActivity credits a chat message to the instruments it mentions.
func (s *MarketService) RecordActivity(req RecordActivityRequest) (RecordActivityResponse, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return RecordActivityResponse{}, domain.Invalid("user_id is required")
	}

	var symbols []string
	if req.Symbol != "" {
		inst, err := s.registry.Get(req.Symbol)
		if err != nil {
			return RecordActivityResponse{}, err
		}
		symbols = append(symbols, inst.Symbol)
	} else {
		seen := make(map[string]bool)
		for _, tag := range activity.Tags(req.Content) {
			sym, ok := s.registry.SymbolForTag(tag)
			if !ok || seen[sym] {
				continue
			}
			seen[sym] = true
			symbols = append(symbols, sym)
		}
		if len(symbols) == 0 {
			return RecordActivityResponse{}, domain.Invalid("symbol or a known [TAG] in content is required")
		}
	}

	var resp RecordActivityResponse
	for _, sym := range symbols {
		counted, err := s.activity.Record(req.UserID, sym)
		if err != nil {
			return RecordActivityResponse{}, err
		}
		if counted {
			resp.Counted = append(resp.Counted, sym)
		} else {
			resp.Ignored = append(resp.Ignored, sym)
		}
	}
	return resp, nil
}

// Activity returns the current activity scores.
func (s *MarketService) Activity() map[string]int64 {
	return s.activity.Scores()
}
