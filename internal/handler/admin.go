package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/cogexchange/internal/service"
)

// AdminHandler handles operator endpoints. Every route sits behind
// requireAdmin.
type AdminHandler struct {
	adminSvc *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminSvc *service.AdminService) *AdminHandler {
	return &AdminHandler{adminSvc: adminSvc}
}

type tickPeriodRequest struct {
	Period string `json:"period"` // Go duration, e.g. "3m"
}

type tickPeriodResponse struct {
	Period string `json:"period"`
}

type setPriceRequest struct {
	Price *amountInput `json:"price"`
}

// requireAdmin rejects requests without a valid token in the
// Authorization header ("Bearer <token>") or X-Admin-Token.
func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if auth := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if err := h.adminSvc.Authorize(token); err != nil {
			mapError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetTickPeriod handles GET /admin/tick-period.
func (h *AdminHandler) GetTickPeriod(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, tickPeriodResponse{Period: h.adminSvc.TickPeriod().String()})
}

// SetTickPeriod handles PUT /admin/tick-period.
func (h *AdminHandler) SetTickPeriod(w http.ResponseWriter, r *http.Request) {
	var req tickPeriodRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	d, err := time.ParseDuration(req.Period)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "period must be a duration such as 30s or 3m")
		return
	}
	if err := h.adminSvc.SetTickPeriod(d); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, tickPeriodResponse{Period: h.adminSvc.TickPeriod().String()})
}

// SetPrice handles PUT /admin/instruments/{symbol}/price.
func (h *AdminHandler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	price, err := req.Price.resolve("price")
	if err != nil {
		mapError(w, err)
		return
	}

	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	st, err := h.adminSvc.SetPrice(symbol, price)
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"symbol":     symbol,
		"price":      moneyOf(st.Price),
		"updated_at": formatTime(st.UpdatedAt),
	})
}

// Reset handles POST /admin/reset.
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.adminSvc.ResetMarket(); err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
