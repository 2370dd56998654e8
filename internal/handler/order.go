package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/service"
)

// OrderHandler handles HTTP requests for order and trade endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
	tradeSvc *service.TradeService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService, tradeSvc *service.TradeService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, tradeSvc: tradeSvc}
}

// placeOrderRequest is the JSON request body for POST /orders.
type placeOrderRequest struct {
	AccountID  string       `json:"account_id"`
	Symbol     string       `json:"symbol"`
	Side       string       `json:"side"`
	Quantity   int64        `json:"quantity"`
	LimitPrice *amountInput `json:"limit_price"`
	TTL        *string      `json:"ttl"` // Go duration, e.g. "90m"
}

// tradeRequest is the JSON request body for POST /trades.
type tradeRequest struct {
	AccountID string `json:"account_id"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Quantity  int64  `json:"quantity"`
}

// orderResponse is the JSON view of a conditional order. Nullable fields
// are always present.
type orderResponse struct {
	OrderID       string  `json:"order_id"`
	AccountID     string  `json:"account_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      int64   `json:"quantity"`
	LimitPrice    money   `json:"limit_price"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	ExpiresAt     *string `json:"expires_at"`
	ResolvedAt    *string `json:"resolved_at"`
	FillPrice     *money  `json:"fill_price"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

type fillResponse struct {
	FillID     string `json:"fill_id"`
	OrderID    string `json:"order_id,omitempty"`
	AccountID  string `json:"account_id"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Quantity   int64  `json:"quantity"`
	Price      money  `json:"price"`
	Total      money  `json:"total"`
	ExecutedAt string `json:"executed_at"`
}

// PlaceOrder handles POST /orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	limit, err := req.LimitPrice.resolve("limit_price")
	if err != nil {
		mapError(w, err)
		return
	}

	var ttl *time.Duration
	if req.TTL != nil {
		d, err := time.ParseDuration(*req.TTL)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "ttl must be a duration such as 90m or 24h")
			return
		}
		ttl = &d
	}

	order, err := h.orderSvc.PlaceOrder(service.PlaceOrderRequest{
		AccountID:  req.AccountID,
		Symbol:     req.Symbol,
		Side:       domain.Side(req.Side),
		Quantity:   req.Quantity,
		LimitPrice: limit,
		TTL:        ttl,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(chi.URLParam(r, "order_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}?account_id=...
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	order, err := h.orderSvc.CancelOrder(accountID, chi.URLParam(r, "order_id"))
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// Trade handles POST /trades.
func (h *OrderHandler) Trade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	fill, err := h.tradeSvc.Trade(service.TradeRequest{
		AccountID: req.AccountID,
		Symbol:    req.Symbol,
		Side:      domain.Side(req.Side),
		Quantity:  req.Quantity,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildFillResponse(fill))
}

func buildOrderResponse(o domain.ConditionalOrder) orderResponse {
	resp := orderResponse{
		OrderID:       o.OrderID,
		AccountID:     o.AccountID,
		Symbol:        o.Symbol,
		Side:          string(o.Side),
		Quantity:      o.Quantity,
		LimitPrice:    moneyOf(o.LimitPrice),
		Status:        string(o.Status),
		CreatedAt:     formatTime(o.CreatedAt),
		ExpiresAt:     formatTimePtr(o.ExpiresAt),
		ResolvedAt:    formatTimePtr(o.ResolvedAt),
		FailureReason: o.FailureReason,
	}
	if o.Status == domain.OrderStatusFilled {
		p := moneyOf(o.FillPrice)
		resp.FillPrice = &p
	}
	return resp
}

func buildFillResponse(f domain.Fill) fillResponse {
	total, _ := domain.Notional(f.Quantity, f.Price)
	return fillResponse{
		FillID:     f.FillID,
		OrderID:    f.OrderID,
		AccountID:  f.AccountID,
		Symbol:     f.Symbol,
		Side:       string(f.Side),
		Quantity:   f.Quantity,
		Price:      moneyOf(f.Price),
		Total:      moneyOf(total),
		ExecutedAt: formatTime(f.ExecutedAt),
	}
}
