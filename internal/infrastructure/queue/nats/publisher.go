// Package nats publishes session lifecycle events.
package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/infrastructure/resilience"
)

// SessionCreatedEvent is the payload published for each new session. Content
// is not included; consumers fetch it through the API if they need it.
type SessionCreatedEvent struct {
	SessionID    string    `json:"session_id"`
	Filename     string    `json:"filename"`
	Format       string    `json:"format"`
	ExtractionOK bool      `json:"extraction_ok"`
	ContentChars int       `json:"content_chars"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewSessionCreatedEvent(s domain.Session) SessionCreatedEvent {
	return SessionCreatedEvent{
		SessionID:    s.ID,
		Filename:     s.Filename,
		Format:       string(s.Format),
		ExtractionOK: s.ExtractionOK,
		ContentChars: len([]rune(s.Content)),
		CreatedAt:    s.CreatedAt,
	}
}

type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	confirm  bool

	flushTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	// ConfirmPublish flushes after each publish so server-side failures
	// surface to the caller instead of being buffered.
	ConfirmPublish bool
	// FlushTimeout bounds the confirming flush. Defaults to 2s.
	FlushTimeout time.Duration
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	flushTimeout := options.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 2 * time.Second
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-chat"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		confirm:  options.ConfirmPublish,

		flushTimeout: flushTimeout,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) PublishSessionCreated(ctx context.Context, session domain.Session) error {
	payload, err := json.Marshal(NewSessionCreatedEvent(session))
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}

	call := func(callCtx context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		if p.confirm {
			return p.flush(callCtx)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	return asTemporary(err)
}

// flush waits for the server to acknowledge buffered publishes. The nats
// client refuses contexts without a deadline, so the wait is always bounded.
func (p *Publisher) flush(ctx context.Context) error {
	flushCtx, cancel := context.WithTimeout(ctx, p.flushTimeout)
	defer cancel()

	err := p.conn.FlushWithContext(flushCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = nats.ErrTimeout
	}
	return fmt.Errorf("nats flush: %w", err)
}
