package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/store"
)

// webhookPayload is the JSON body POSTed to subscribers.
type webhookPayload struct {
	Event     domain.EventKind `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      map[string]any   `json:"data"`
}

// WebhookSink POSTs account-scoped events to the URL the account
// subscribed for that event kind. Deliveries are fire-and-forget.
type WebhookSink struct {
	store  *store.WebhookStore
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSink creates a WebhookSink whose requests time out after
// timeout.
func NewWebhookSink(webhooks *store.WebhookStore, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookSink{
		store: webhooks,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With(zap.String("component", "webhook")),
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Deliver looks up the subscription and sends the request in the
// background. Events without an account are not webhook material.
func (s *WebhookSink) Deliver(_ context.Context, e domain.Event) error {
	if e.AccountID == "" {
		return nil
	}
	wh, ok := s.store.GetByAccountEvent(e.AccountID, e.Kind)
	if !ok {
		return nil
	}

	data := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		data[k] = v
	}
	data["account_id"] = e.AccountID
	if e.Symbol != "" {
		data["symbol"] = e.Symbol
	}

	payload := webhookPayload{
		Event:     e.Kind,
		Timestamp: e.Timestamp.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      data,
	}
	go func() {
		if err := s.post(wh, payload); err != nil {
			s.logger.Warn("webhook delivery failed",
				zap.String("webhook_id", wh.WebhookID),
				zap.String("event", string(e.Kind)),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// post sends the payload with the delivery headers.
func (s *WebhookSink) post(wh domain.Webhook, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", string(payload.Event))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("subscriber answered %d", resp.StatusCode)
	}
	return nil
}
