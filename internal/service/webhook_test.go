package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/efreitasn/cogexchange/internal/domain"
	"github.com/efreitasn/cogexchange/internal/ledger"
	"github.com/efreitasn/cogexchange/internal/store"
)

func newTestWebhookService(t *testing.T, accounts ...string) *WebhookService {
	t.Helper()
	l := ledger.New(store.NewAccountStore(), nil)
	for _, id := range accounts {
		if _, err := l.Open(id, "", startingBalance); err != nil {
			t.Fatalf("failed to open account %s: %v", id, err)
		}
	}
	return NewWebhookService(store.NewWebhookStore(), l)
}

func TestUpsert_Success_NewSubscriptions(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1")

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.filled", "alert.fired"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for new subscriptions")
	}
	if len(webhooks) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(webhooks))
	}
	if webhooks[0].Event != domain.EventOrderFilled {
		t.Errorf("got event %q, want %q", webhooks[0].Event, domain.EventOrderFilled)
	}
	if webhooks[1].Event != domain.EventAlertFired {
		t.Errorf("got event %q, want %q", webhooks[1].Event, domain.EventAlertFired)
	}
	if webhooks[0].URL != "https://example.com/hooks" {
		t.Errorf("got URL %q, want %q", webhooks[0].URL, "https://example.com/hooks")
	}
}

func TestUpsert_Success_UpdateExistingURL(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1")

	first, _, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/old",
		Events:    []string{"order.expired"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/new",
		Events:    []string{"order.expired"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected created=false for URL update")
	}
	if len(webhooks) != 1 {
		t.Fatalf("got %d webhooks, want 1", len(webhooks))
	}
	if webhooks[0].URL != "https://example.com/new" {
		t.Errorf("got URL %q, want %q", webhooks[0].URL, "https://example.com/new")
	}
	if webhooks[0].WebhookID != first[0].WebhookID {
		t.Errorf("webhook_id changed from %q to %q", first[0].WebhookID, webhooks[0].WebhookID)
	}
}

func TestUpsert_Success_MixNewAndExisting(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1")

	if _, _, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.filled"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.filled", "order.cancelled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true when at least one subscription is new")
	}
	if len(webhooks) != 2 {
		t.Fatalf("got %d webhooks, want 2", len(webhooks))
	}
}

func TestUpsert_Success_DeduplicateEvents(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1")

	webhooks, _, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.failed", "order.failed", "order.failed"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(webhooks) != 1 {
		t.Fatalf("got %d webhooks, want 1 after dedup", len(webhooks))
	}
}

func TestUpsert_AccountNotFound(t *testing.T) {
	svc := newTestWebhookService(t)

	_, _, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "nonexistent",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.filled"},
	})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("got error %v, want ErrAccountNotFound", err)
	}
}

func TestUpsert_InvalidRequests(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1")

	tests := []struct {
		name    string
		url     string
		events  []string
		message string
	}{
		{"empty url", "", []string{"order.filled"}, "url is required"},
		{"http scheme", "http://example.com/hooks", []string{"order.filled"}, "url must use https scheme"},
		{"url too long", "https://example.com/" + strings.Repeat("a", 2048), []string{"order.filled"}, "url must be at most 2048 characters"},
		{"relative url", "not a url", []string{"order.filled"}, "url must be a valid absolute URL"},
		{"no events", "https://example.com/hooks", nil, "events must be a non-empty array"},
		{
			"unknown event", "https://example.com/hooks", []string{"trade.matched"},
			"Unknown event type: trade.matched. Must be one of: alert.fired, order.cancelled, order.expired, order.failed, order.filled",
		},
		{
			"tick events are not subscribable", "https://example.com/hooks", []string{"tick.completed"},
			"Unknown event type: tick.completed. Must be one of: alert.fired, order.cancelled, order.expired, order.failed, order.filled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Upsert(UpsertWebhookRequest{AccountID: "acct-1", URL: tt.url, Events: tt.events})
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("got error %v, want ValidationError", err)
			}
			if ve.Message != tt.message {
				t.Errorf("got message %q, want %q", ve.Message, tt.message)
			}
		})
	}
}

func TestList_SortedByEvent(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1")

	if _, _, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.filled", "alert.fired", "order.expired"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hooks, err := svc.List("acct-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.EventKind{domain.EventAlertFired, domain.EventOrderExpired, domain.EventOrderFilled}
	if len(hooks) != len(want) {
		t.Fatalf("got %d webhooks, want %d", len(hooks), len(want))
	}
	for i, k := range want {
		if hooks[i].Event != k {
			t.Errorf("position %d: got %q, want %q", i, hooks[i].Event, k)
		}
	}

	if _, err := svc.List("nonexistent"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got error %v, want ErrAccountNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestWebhookService(t, "acct-1", "acct-2")

	hooks, _, err := svc.Upsert(UpsertWebhookRequest{
		AccountID: "acct-1",
		URL:       "https://example.com/hooks",
		Events:    []string{"order.filled"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id := hooks[0].WebhookID

	if err := svc.Delete("acct-2", id); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Errorf("got error %v, want ErrWebhookNotFound for another account", err)
	}
	if err := svc.Delete("acct-1", id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete("acct-1", id); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Errorf("got error %v, want ErrWebhookNotFound after delete", err)
	}

	remaining, _ := svc.List("acct-1")
	if len(remaining) != 0 {
		t.Errorf("got %d webhooks, want 0", len(remaining))
	}
}
