package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/infrastructure/resilience"
)

func TestSessionCreatedEventOmitsContent(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	event := NewSessionCreatedEvent(domain.Session{
		ID:           "s-1",
		Filename:     "plan.pdf",
		Format:       domain.FormatPDF,
		Content:      "ünïcode content",
		ExtractionOK: true,
		CreatedAt:    created,
	})
	if event.ContentChars != 15 {
		t.Fatalf("expected rune count 15, got %d", event.ContentChars)
	}

	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := decoded["content"]; ok {
		t.Fatalf("event must not carry document content: %s", raw)
	}
	if decoded["session_id"] != "s-1" || decoded["format"] != "pdf" {
		t.Fatalf("unexpected event %s", raw)
	}
}

func TestClassifyPublishErrorRetriesConnectionLoss(t *testing.T) {
	class := classifyPublishError(fmt.Errorf("nats publish: %w", nats.ErrConnectionClosed))
	if !class.Retryable || !class.RecordFailure {
		t.Fatalf("expected retryable failure, got %+v", class)
	}
	if !domain.IsKind(asTemporary(nats.ErrNoServers), domain.ErrTemporary) {
		t.Fatalf("expected no-servers error to be temporary")
	}
	if class := classifyPublishError(nats.ErrBadSubject); class.Retryable {
		t.Fatalf("bad subject must not be retried")
	}
	if domain.IsKind(asTemporary(nats.ErrBadSubject), domain.ErrTemporary) {
		t.Fatalf("bad subject is not temporary")
	}
	if class := classifyPublishError(context.Canceled); class.RecordFailure {
		t.Fatalf("cancellation must not count against the breaker")
	}
}

func TestConfirmedPublishBoundsFlushWithoutCallerDeadline(t *testing.T) {
	publisher, err := NewWithOptions("nats://127.0.0.1:1", "documents.sessions", Options{
		ConnectTimeout:     50 * time.Millisecond,
		ResilienceExecutor: resilience.NewExecutor(resilience.EventPublish()),
		ConfirmPublish:     true,
		FlushTimeout:       50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	defer publisher.Close()

	err = publisher.PublishSessionCreated(context.Background(), domain.Session{ID: "s-1", Format: domain.FormatTXT})
	if err == nil {
		t.Fatalf("expected flush to fail without a reachable server")
	}
	if errors.Is(err, nats.ErrNoDeadlineContext) {
		t.Fatalf("flush must carry its own deadline, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestFlushTimeoutDefaults(t *testing.T) {
	publisher, err := NewWithOptions("nats://127.0.0.1:1", "documents.sessions", Options{
		ConnectTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	defer publisher.Close()

	if publisher.flushTimeout != 2*time.Second {
		t.Fatalf("expected 2s default flush timeout, got %v", publisher.flushTimeout)
	}
}
