package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/service"
)

// AlertHandler handles HTTP requests for price alert endpoints.
type AlertHandler struct {
	alertSvc *service.AlertService
}

func NewAlertHandler(alertSvc *service.AlertService) *AlertHandler {
	return &AlertHandler{alertSvc: alertSvc}
}

type createAlertRequest struct {
	AccountID string       `json:"account_id"`
	Symbol    string       `json:"symbol"`
	Direction string       `json:"direction"`
	Threshold *amountInput `json:"threshold"`
}

type alertResponse struct {
	AlertID    string  `json:"alert_id"`
	AccountID  string  `json:"account_id"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Threshold  money   `json:"threshold"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	FiredAt    *string `json:"fired_at"`
	FiredPrice *money  `json:"fired_price"`
}

// Create handles POST /alerts.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	threshold, err := req.Threshold.resolve("threshold")
	if err != nil {
		mapError(w, err)
		return
	}

	alert, err := h.alertSvc.CreateAlert(service.CreateAlertRequest{
		AccountID: req.AccountID,
		Symbol:    req.Symbol,
		Direction: domain.Direction(req.Direction),
		Threshold: threshold,
	})
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, buildAlertResponse(alert))
}

// Get handles GET /alerts/{alert_id}.
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	alert, err := h.alertSvc.GetAlert(chi.URLParam(r, "alert_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAlertResponse(alert))
}

// Cancel handles DELETE /alerts/{alert_id}?account_id=...
func (h *AlertHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		WriteError(w, http.StatusBadRequest, "validation_error", "account_id query parameter is required")
		return
	}

	alert, err := h.alertSvc.CancelAlert(accountID, chi.URLParam(r, "alert_id"))
	if err != nil {
		mapError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildAlertResponse(alert))
}

func buildAlertResponse(a domain.PriceAlert) alertResponse {
	resp := alertResponse{
		AlertID:   a.AlertID,
		AccountID: a.AccountID,
		Symbol:    a.Symbol,
		Direction: string(a.Direction),
		Threshold: moneyOf(a.Threshold),
		Status:    string(a.Status),
		CreatedAt: formatTime(a.CreatedAt),
		FiredAt:   formatTimePtr(a.FiredAt),
	}
	if a.Status == domain.AlertStatusFired {
		p := moneyOf(a.FiredPrice)
		resp.FiredPrice = &p
	}
	return resp
}
