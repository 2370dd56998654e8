package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/cogexchange/internal/domain"
)

// timeLayout is the wire format for every timestamp.
const timeLayout = "2006-01-02T15:04:05Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v.
// It validates that the Content-Type header is application/json and
// returns an error for missing/incorrect content type or malformed JSON.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// money is an amount in spurs with its exact cog rendering.
type money struct {
	Spurs int64  `json:"spurs"`
	Cogs  string `json:"cogs"`
}

func moneyOf(spurs int64) money {
	return money{Spurs: spurs, Cogs: domain.FormatCogs(spurs)}
}

// amountInput accepts a price either in spurs or as a decimal cog string.
type amountInput struct {
	Spurs *int64  `json:"spurs"`
	Cogs  *string `json:"cogs"`
}

// resolve returns the amount in spurs. Exactly one form must be set.
func (a *amountInput) resolve(field string) (int64, error) {
	switch {
	case a == nil || (a.Spurs == nil && a.Cogs == nil):
		return 0, domain.Invalid(field + " is required")
	case a.Spurs != nil && a.Cogs != nil:
		return 0, domain.Invalid(field + " must set either spurs or cogs, not both")
	case a.Spurs != nil:
		return *a.Spurs, nil
	}
	spurs, err := domain.CogsToSpurs(*a.Cogs)
	if err != nil {
		return 0, domain.Invalid(field + ": " + err.Error())
	}
	return spurs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// sentinelStatus maps each domain sentinel to its HTTP status and
// message. Order matters only for errors wrapping several sentinels.
var sentinelStatus = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrAccountNotFound, http.StatusNotFound, "Account not found"},
	{domain.ErrInstrumentNotFound, http.StatusNotFound, "Instrument not found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{domain.ErrAlertNotFound, http.StatusNotFound, "Alert not found"},
	{domain.ErrWebhookNotFound, http.StatusNotFound, "Webhook not found"},
	{domain.ErrAccountAlreadyExists, http.StatusConflict, "Account already exists"},
	{domain.ErrInsufficientFunds, http.StatusConflict, "Not enough available cash"},
	{domain.ErrInsufficientHoldings, http.StatusConflict, "Not enough available holdings"},
	{domain.ErrAlreadyResolved, http.StatusConflict, "Already resolved"},
	{domain.ErrOwnTeamTrade, http.StatusConflict, "Accounts cannot trade their own team's instrument"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "A valid admin token is required"},
	{domain.ErrSystemicFailure, http.StatusServiceUnavailable, "Temporarily unavailable, will retry"},
}

// mapError maps domain errors to HTTP responses.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			WriteError(w, s.status, s.err.Error(), s.message)
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}
