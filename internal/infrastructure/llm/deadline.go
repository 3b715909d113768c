package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/core/ports"
)

const DefaultCallTimeout = 45 * time.Second

// DeadlineCaller runs a generator under a fixed deadline and reports the
// outcome as a tagged result. A generator that ignores its context is
// abandoned when the deadline passes; its late result is discarded.
type DeadlineCaller struct {
	generator ports.TextGenerator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewDeadlineCaller(generator ports.TextGenerator, timeout time.Duration, logger *slog.Logger) *DeadlineCaller {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadlineCaller{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
	}
}

type generateOutcome struct {
	text string
	err  error
}

func (c *DeadlineCaller) Call(ctx context.Context, prompt string) domain.ModelResult {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan generateOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- generateOutcome{err: fmt.Errorf("model backend panic: %v", r)}
			}
		}()
		text, err := c.generator.Generate(callCtx, prompt)
		done <- generateOutcome{text: text, err: err}
	}()

	var out generateOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = generateOutcome{err: callCtx.Err()}
	}

	elapsed := time.Since(start)
	if out.err == nil {
		c.logger.DebugContext(ctx, "model_call_completed", "duration_ms", elapsed.Milliseconds(), "chars", len(out.text))
		return domain.ModelSucceeded(out.text)
	}

	if isTimeout(out.err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		c.logger.WarnContext(ctx, "model_call_timed_out",
			"timeout_ms", c.timeout.Milliseconds(),
			"duration_ms", elapsed.Milliseconds(),
			"error", out.err,
		)
		return domain.ModelTimeout(out.err.Error())
	}

	c.logger.WarnContext(ctx, "model_call_failed", "duration_ms", elapsed.Milliseconds(), "error", out.err)
	return domain.ModelFailure(out.err.Error())
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
