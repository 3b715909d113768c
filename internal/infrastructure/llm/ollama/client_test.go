package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/infrastructure/resilience"
)

func TestGenerateSendsPromptAndModel(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  Widgets improve efficiency.  ","done":true}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llama2", Options{})
	text, err := client.Generate(context.Background(), "question?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Widgets improve efficiency." {
		t.Fatalf("unexpected text %q", text)
	}
	if payload["model"] != "llama2" || payload["prompt"] != "question?" || payload["stream"] != false {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "llama2", Options{}).Generate(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestGenerateEmptyResponseIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   ","done":true}`))
	}))
	defer server.Close()

	out, err := New(server.URL, "llama2", Options{}).Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty text, got %q", out)
	}
}

func TestGenerateMakesSingleAttemptAndTripsBreaker(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})
	client := New(server.URL, "llama2", Options{ResilienceExecutor: exec})

	for i := 0; i < 2; i++ {
		if _, err := client.Generate(context.Background(), "hello"); err == nil {
			t.Fatalf("expected error on call %d", i)
		}
	}
	if calls != 2 {
		t.Fatalf("expected exactly one HTTP attempt per call, got %d", calls)
	}

	_, err := client.Generate(context.Background(), "hello")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("open circuit must not reach the server, got %d calls", calls)
	}
}

func TestGenerateSurfacesOllamaErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'llama9' not found, try pulling it first"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "llama9", Options{}).Generate(context.Background(), "hello")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected HTTPStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || !strings.HasPrefix(statusErr.Message, "model 'llama9' not found") {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("missing model is not a temporary condition")
	}
}
