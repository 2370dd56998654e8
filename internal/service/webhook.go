package service

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/store"
)

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	AccountID string
	URL       string
	Events    []string
}

// WebhookService handles webhook subscriptions. Delivery lives in the
// notify package.
type WebhookService struct {
	store  *store.WebhookStore
	ledger *ledger.Ledger
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, l *ledger.Ledger) *WebhookService {
	return &WebhookService{
		store:  webhookStore,
		ledger: l,
	}
}

func eventKindList() string {
	kinds := make([]string, 0, len(domain.ValidEventKinds))
	for k := range domain.ValidEventKinds {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	return strings.Join(kinds, ", ")
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]domain.Webhook, bool, error) {
	if _, err := s.ledger.Snapshot(req.AccountID); err != nil {
		return nil, false, err
	}

	// Validate URL.
	if req.URL == "" {
		return nil, false, domain.Invalid("url is required")
	}
	if len(req.URL) > 2048 {
		return nil, false, domain.Invalid("url must be at most 2048 characters")
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, domain.Invalid("url must be a valid absolute URL")
	}
	if parsed.Scheme != "https" {
		return nil, false, domain.Invalid("url must use https scheme")
	}

	if len(req.Events) == 0 {
		return nil, false, domain.Invalid("events must be a non-empty array")
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[domain.EventKind]bool, len(req.Events))
	kinds := make([]domain.EventKind, 0, len(req.Events))
	for _, event := range req.Events {
		kind := domain.EventKind(event)
		if !domain.ValidEventKinds[kind] {
			return nil, false, domain.Invalid("Unknown event type: " + event + ". Must be one of: " + eventKindList())
		}
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]domain.Webhook, 0, len(kinds))

	for _, kind := range kinds {
		w, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.New().String(),
			AccountID: req.AccountID,
			Event:     kind,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, w)
	}

	return webhooks, anyCreated, nil
}

// List validates the account exists and returns its subscriptions
// ordered by event.
func (s *WebhookService) List(accountID string) ([]domain.Webhook, error) {
	if _, err := s.ledger.Snapshot(accountID); err != nil {
		return nil, err
	}
	hooks := s.store.ListByAccount(accountID)
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].Event < hooks[j].Event })
	return hooks, nil
}

// Delete removes one of the account's webhook subscriptions.
func (s *WebhookService) Delete(accountID, webhookID string) error {
	w, err := s.store.Get(webhookID)
	if err != nil {
		return err
	}
	if w.AccountID != accountID {
		return domain.ErrWebhookNotFound
	}
	return s.store.Delete(webhookID)
}
