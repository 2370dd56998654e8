package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidOrder         = errors.New("invalid_order")
	ErrInsufficientFunds    = errors.New("insufficient_funds")
	ErrInsufficientHoldings = errors.New("insufficient_holdings")
	ErrInstrumentNotFound   = errors.New("instrument_not_found")
	ErrOrderNotFound        = errors.New("order_not_found")
	ErrAlertNotFound        = errors.New("alert_not_found")
	ErrAlreadyResolved      = errors.New("already_resolved")
	ErrAccountNotFound      = errors.New("account_not_found")
	ErrAccountAlreadyExists = errors.New("account_already_exists")
	ErrOwnTeamTrade         = errors.New("own_team_trade")
	ErrWebhookNotFound      = errors.New("webhook_not_found")
	ErrUnauthorized         = errors.New("unauthorized")

	// ErrSystemicFailure marks storage or collaborator outages. It aborts
	// the affected unit of work and is retried on the next tick.
	ErrSystemicFailure = errors.New("systemic_failure")
)

// ValidationError represents a request validation failure. It unwraps to
// ErrInvalidOrder so callers can test the error class with errors.Is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOrder
}

// Invalid returns a *ValidationError carrying msg.
func Invalid(msg string) error {
	return &ValidationError{Message: msg}
}
