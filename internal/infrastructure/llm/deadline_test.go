package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func TestDeadlineCallerSuccess(t *testing.T) {
	caller := NewDeadlineCaller(generatorFunc(func(_ context.Context, prompt string) (string, error) {
		return "echo: " + prompt, nil
	}), time.Second, nil)

	res := caller.Call(context.Background(), "hi")
	if !res.OK() || res.Text != "echo: hi" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDeadlineCallerTimeoutWithContextAwareBackend(t *testing.T) {
	caller := NewDeadlineCaller(generatorFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 10*time.Millisecond, nil)

	res := caller.Call(context.Background(), "slow")
	if res.Status != domain.ModelTimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestDeadlineCallerAbandonsBackendIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	caller := NewDeadlineCaller(generatorFunc(func(context.Context, string) (string, error) {
		<-release
		return "late", nil
	}), 10*time.Millisecond, nil)

	start := time.Now()
	res := caller.Call(context.Background(), "stuck")
	if res.Status != domain.ModelTimedOut {
		t.Fatalf("expected timeout, got %+v", res)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("deadline was not enforced")
	}
}

func TestDeadlineCallerFailure(t *testing.T) {
	caller := NewDeadlineCaller(generatorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("exit status 1")
	}), time.Second, nil)

	res := caller.Call(context.Background(), "x")
	if res.Status != domain.ModelFailed || res.Reason != "exit status 1" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDeadlineCallerRecoversBackendPanic(t *testing.T) {
	caller := NewDeadlineCaller(generatorFunc(func(context.Context, string) (string, error) {
		panic("boom")
	}), time.Second, nil)

	res := caller.Call(context.Background(), "x")
	if res.Status != domain.ModelFailed {
		t.Fatalf("expected failure, got %+v", res)
	}
}
