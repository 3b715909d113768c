package bootstrap

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/document-chat/internal/config"
	"github.com/kirillkom/document-chat/internal/core/domain"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		OllamaURL:          "http://127.0.0.1:1",
		OllamaGenModel:     "test-model",
		LLMBackend:         "http",
		LLMTimeout:         config.MinLLMTimeout,
		SessionBackend:     "memory",
		PromptContextChars: 2500,
	}
}

func TestNewWiresInMemoryPipeline(t *testing.T) {
	cfg := baseConfig(t)
	cfg.StoragePath = filepath.Join(t.TempDir(), "uploads")

	app, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	res, err := app.IngestUC.Ingest(context.Background(), "notes.txt", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	session, err := app.Sessions.GetSession(context.Background(), res.SessionID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session.ExtractionOK {
		t.Fatalf("five characters of text must be flagged as thin content")
	}
	if app.Metrics == nil {
		t.Fatalf("expected metrics registry")
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := baseConfig(t)
	cfg.SessionBackend = "etcd"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown session backend")
	}

	cfg = baseConfig(t)
	cfg.LLMBackend = "grpc"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown llm backend")
	}
}

func TestNewCLIBackendAndTTLStore(t *testing.T) {
	cfg := baseConfig(t)
	cfg.LLMBackend = "cli"
	cfg.OllamaCLIPath = "ollama"
	cfg.SessionBackend = "ttl"

	app, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	_, err = app.Sessions.GetSession(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type sweepFake struct {
	calls chan struct{}
}

func (f *sweepFake) DeleteExpired(context.Context) (int64, error) {
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return 1, nil
}

func TestExpirySweeperRunsUntilStopped(t *testing.T) {
	fake := &sweepFake{calls: make(chan struct{}, 1)}
	stop := startExpirySweeper(fake, 5*time.Millisecond)

	select {
	case <-fake.calls:
	case <-time.After(time.Second):
		t.Fatalf("sweeper never ran")
	}
	stop()

	if noop := startExpirySweeper(fake, 0); noop == nil {
		t.Fatalf("expected no-op stop func")
	}
}
