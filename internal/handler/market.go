package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/cogexchange/internal/service"
)

// MarketHandler handles HTTP requests for instrument and activity
// endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// instrumentResponse is the JSON view of an instrument.
type instrumentResponse struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Volatility    string  `json:"volatility"`
	Baseline      money   `json:"baseline"`
	Price         money   `json:"price"`
	Change        money   `json:"change"` // price minus baseline
	Momentum      float64 `json:"momentum"`
	Activity      int64   `json:"activity"`
	PendingOrders int     `json:"pending_orders"`
	ActiveAlerts  int     `json:"active_alerts"`
	UpdatedAt     string  `json:"updated_at"`
}

type pricePointResponse struct {
	Timestamp string `json:"timestamp"`
	Price     money  `json:"price"`
}

type historyResponse struct {
	Symbol string               `json:"symbol"`
	Points []pricePointResponse `json:"points"`
}

type recordActivityRequest struct {
	UserID  string `json:"user_id"`
	Symbol  string `json:"symbol"`
	Content string `json:"content"`
}

type recordActivityResponse struct {
	Counted []string `json:"counted"`
	Ignored []string `json:"ignored"`
}

// ListInstruments handles GET /instruments.
func (h *MarketHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	views := h.marketSvc.Instruments()
	out := make([]instrumentResponse, len(views))
	for i, v := range views {
		out[i] = buildInstrumentResponse(v)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"instruments": out})
}

// GetInstrument handles GET /instruments/{symbol}.
func (h *MarketHandler) GetInstrument(w http.ResponseWriter, r *http.Request) {
	v, err := h.marketSvc.Instrument(chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildInstrumentResponse(v))
}

// GetHistory handles GET /instruments/{symbol}/history.
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 100)
	if !ok {
		return
	}
	v, err := h.marketSvc.Instrument(chi.URLParam(r, "symbol"))
	if err != nil {
		mapError(w, err)
		return
	}
	points, err := h.marketSvc.History(v.Symbol, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]pricePointResponse, len(points))
	for i, p := range points {
		out[i] = pricePointResponse{Timestamp: formatTime(p.Timestamp), Price: moneyOf(p.Price)}
	}
	WriteJSON(w, http.StatusOK, historyResponse{Symbol: v.Symbol, Points: out})
}

// GetActivity handles GET /activity.
func (h *MarketHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"scores": h.marketSvc.Activity()})
}

// RecordActivity handles POST /activity. The chat ingester calls it once
// per message.
func (h *MarketHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.marketSvc.RecordActivity(service.RecordActivityRequest{
		UserID:  req.UserID,
		Symbol:  req.Symbol,
		Content: req.Content,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	out := recordActivityResponse{Counted: resp.Counted, Ignored: resp.Ignored}
	if out.Counted == nil {
		out.Counted = []string{}
	}
	if out.Ignored == nil {
		out.Ignored = []string{}
	}
	WriteJSON(w, http.StatusAccepted, out)
}

func buildInstrumentResponse(v service.InstrumentView) instrumentResponse {
	return instrumentResponse{
		Symbol:        v.Symbol,
		Name:          v.Name,
		Volatility:    string(v.Volatility),
		Baseline:      moneyOf(v.Baseline),
		Price:         moneyOf(v.Price),
		Change:        moneyOf(v.Price - v.Baseline),
		Momentum:      v.Momentum,
		Activity:      v.Activity,
		PendingOrders: v.PendingOrders,
		ActiveAlerts:  v.ActiveAlerts,
		UpdatedAt:     formatTime(v.UpdatedAt),
	}
}
