package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errTransient = errors.New("connection refused")

func retryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
	}
}

func TestExecuteRetryPolicy(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		retryable    bool
		wantAttempts int
		wantErr      bool
	}{
		{name: "recovers after transient failures", failures: 2, retryable: true, wantAttempts: 3},
		{name: "gives up after max attempts", failures: 10, retryable: true, wantAttempts: 3, wantErr: true},
		{name: "permanent failure is not retried", failures: 10, retryable: false, wantAttempts: 1, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exec := NewExecutor(retryConfig())
			attempts := 0
			err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
				attempts++
				if attempts <= tc.failures {
					return errTransient
				}
				return nil
			}, func(error) ErrorClassification {
				return ErrorClassification{Retryable: tc.retryable, RecordFailure: true}
			})
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if attempts != tc.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tc.wantAttempts, attempts)
			}
		})
	}
}

func TestExecuteStopsRetryingWhenContextEnds(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Second,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := exec.Execute(ctx, "nats.publish", func(context.Context) error {
		attempts++
		return errTransient
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected last operation error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected backoff to be cut short after 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpenCircuitSkipsOperation(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	})

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
			return errTransient
		}, nil)
		if !errors.Is(err, errTransient) {
			t.Fatalf("call %d: expected operation error, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		t.Fatalf("open circuit must not call the operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}

	// Breakers are per operation.
	if err := exec.Execute(context.Background(), "nats.publish", func(context.Context) error { return nil }, nil); err != nil {
		t.Fatalf("unrelated operation must be unaffected, got %v", err)
	}
}

func TestSingleAttemptNeverRetries(t *testing.T) {
	exec := NewExecutor(SingleAttempt(false))

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "model", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestStateListenerSeesBreakerOpen(t *testing.T) {
	var transitions []State
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		BreakerEnabled:          true,
		BreakerMinRequests:      1,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      time.Minute,
		BreakerHalfOpenMaxCalls: 1,
	}, WithStateListener(func(operation string, _, to State) {
		if operation == "ollama.generate" {
			transitions = append(transitions, to)
		}
	}))

	if got := exec.State("ollama.generate"); got != StateClosed {
		t.Fatalf("unknown operation should report closed, got %q", got)
	}
	_ = exec.Execute(context.Background(), "ollama.generate", func(context.Context) error {
		return errors.New("down")
	}, nil)

	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Fatalf("expected one transition to open, got %v", transitions)
	}
	if got := exec.State("ollama.generate"); got != StateOpen {
		t.Fatalf("expected open state, got %q", got)
	}
}

func TestBackoffIsGeometricAndCapped(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: 10 * time.Millisecond,
		RetryMaxBackoff:     35 * time.Millisecond,
		RetryMultiplier:     2,
	})
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 35 * time.Millisecond, 35 * time.Millisecond}
	for i, w := range want {
		if got := exec.backoff(i + 1); got != w {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestEventPublishOpensEarlyWithoutRetry(t *testing.T) {
	exec := NewExecutor(EventPublish())

	attempts := 0
	for i := 0; i < 6; i++ {
		_ = exec.Execute(context.Background(), "nats.publish", func(context.Context) error {
			attempts++
			return errors.New("no servers")
		}, func(error) ErrorClassification {
			return ErrorClassification{Retryable: true, RecordFailure: true}
		})
	}
	if attempts != 5 {
		t.Fatalf("expected one attempt per call until the breaker opens after 5, got %d", attempts)
	}
	if exec.State("nats.publish") != StateOpen {
		t.Fatalf("expected open breaker")
	}
}
