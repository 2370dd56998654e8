package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/service"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc *service.AccountService
	orderSvc   *service.OrderService
	alertSvc   *service.AlertService
	tradeSvc   *service.TradeService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	alertSvc *service.AlertService,
	tradeSvc *service.TradeService,
) *AccountHandler {
	return &AccountHandler{
		accountSvc: accountSvc,
		orderSvc:   orderSvc,
		alertSvc:   alertSvc,
		tradeSvc:   tradeSvc,
	}
}

// registerAccountRequest is the JSON request body for POST /accounts.
type registerAccountRequest struct {
	AccountID string `json:"account_id"`
	Team      string `json:"team"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	AccountID string `json:"account_id"`
	Team      string `json:"team,omitempty"`
	Cash      money  `json:"cash"`
	CreatedAt string `json:"created_at"`
}

// balanceResponse is the JSON response for GET /accounts/{account_id}/balance.
type balanceResponse struct {
	AccountID     string                   `json:"account_id"`
	Team          string                   `json:"team,omitempty"`
	Cash          money                    `json:"cash"`
	ReservedCash  money                    `json:"reserved_cash"`
	AvailableCash money                    `json:"available_cash"`
	Holdings      []holdingBalanceResponse `json:"holdings"`
	UpdatedAt     string                   `json:"updated_at"`
}

// holdingBalanceResponse is a single holding in the balance response.
type holdingBalanceResponse struct {
	Symbol            string `json:"symbol"`
	Quantity          int64  `json:"quantity"`
	ReservedQuantity  int64  `json:"reserved_quantity"`
	AvailableQuantity int64  `json:"available_quantity"`
}

type portfolioResponse struct {
	AccountID     string             `json:"account_id"`
	Cash          money              `json:"cash"`
	HoldingsValue money              `json:"holdings_value"`
	NetWorth      money              `json:"net_worth"`
	Positions     []positionResponse `json:"positions"`
}

type positionResponse struct {
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Price    money  `json:"price"`
	Value    money  `json:"value"`
}

type leaderboardEntryResponse struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Team      string `json:"team,omitempty"`
	NetWorth  money  `json:"net_worth"`
}

// orderListResponse is the JSON response for GET /accounts/{account_id}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// Register handles POST /accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snap, err := h.accountSvc.Register(service.RegisterAccountRequest{
		AccountID: req.AccountID,
		Team:      req.Team,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID: snap.AccountID,
		Team:      snap.Team,
		Cash:      moneyOf(snap.Cash),
		CreatedAt: formatTime(snap.CreatedAt),
	})
}

// GetBalance handles GET /accounts/{account_id}/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accountSvc.Balance(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	holdings := make([]holdingBalanceResponse, len(balance.Holdings))
	for i, hb := range balance.Holdings {
		holdings[i] = holdingBalanceResponse{
			Symbol:            hb.Symbol,
			Quantity:          hb.Quantity,
			ReservedQuantity:  hb.ReservedQuantity,
			AvailableQuantity: hb.AvailableQuantity,
		}
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		AccountID:     balance.AccountID,
		Team:          balance.Team,
		Cash:          moneyOf(balance.Cash),
		ReservedCash:  moneyOf(balance.ReservedCash),
		AvailableCash: moneyOf(balance.AvailableCash),
		Holdings:      holdings,
		UpdatedAt:     formatTime(balance.UpdatedAt),
	})
}

// GetPortfolio handles GET /accounts/{account_id}/portfolio.
func (h *AccountHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.accountSvc.Portfolio(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	positions := make([]positionResponse, len(p.Positions))
	for i, pos := range p.Positions {
		positions[i] = positionResponse{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			Price:    moneyOf(pos.Price),
			Value:    moneyOf(pos.Value),
		}
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		AccountID:     p.AccountID,
		Cash:          moneyOf(p.Cash),
		HoldingsValue: moneyOf(p.HoldingsValue),
		NetWorth:      moneyOf(p.NetWorth),
		Positions:     positions,
	})
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}

	orders, total, err := h.orderSvc.ListOrders(accountID, statusFilter, page, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = buildOrderResponse(o)
	}

	WriteJSON(w, http.StatusOK, orderListResponse{
		Orders: out,
		Total:  total,
		Page:   page,
		Limit:  limit,
	})
}

// ListAlerts handles GET /accounts/{account_id}/alerts.
func (h *AccountHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.alertSvc.ListAlerts(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]alertResponse, len(alerts))
	for i, a := range alerts {
		out[i] = buildAlertResponse(a)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

// ListFills handles GET /accounts/{account_id}/fills.
func (h *AccountHandler) ListFills(w http.ResponseWriter, r *http.Request) {
	fills, err := h.tradeSvc.Fills(chi.URLParam(r, "account_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]fillResponse, len(fills))
	for i, f := range fills {
		out[i] = buildFillResponse(f)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"fills": out})
}

// Leaderboard handles GET /leaderboard.
func (h *AccountHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 10)
	if !ok {
		return
	}

	entries, err := h.accountSvc.Leaderboard(limit)
	if err != nil {
		mapError(w, err)
		return
	}

	out := make([]leaderboardEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = leaderboardEntryResponse{
			Rank:      e.Rank,
			AccountID: e.AccountID,
			Team:      e.Team,
			NetWorth:  moneyOf(e.NetWorth),
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// queryInt reads an integer query parameter, writing a 400 when it is
// malformed.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", name+" must be a valid integer")
		return 0, false
	}
	return v, true
}
