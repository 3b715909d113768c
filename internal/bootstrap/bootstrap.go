package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/document-chat/internal/config"
	"github.com/kirillkom/document-chat/internal/core/ports"
	"github.com/kirillkom/document-chat/internal/core/usecase"
	"github.com/kirillkom/document-chat/internal/infrastructure/extractor"
	"github.com/kirillkom/document-chat/internal/infrastructure/llm"
	"github.com/kirillkom/document-chat/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/document-chat/internal/infrastructure/llm/ollamacli"
	"github.com/kirillkom/document-chat/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-chat/internal/infrastructure/relevance"
	"github.com/kirillkom/document-chat/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-chat/internal/infrastructure/resilience"
	"github.com/kirillkom/document-chat/internal/infrastructure/sanitize"
	"github.com/kirillkom/document-chat/internal/infrastructure/session"
	"github.com/kirillkom/document-chat/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/document-chat/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Metrics  *metrics.HTTPServerMetrics
	IngestUC ports.DocumentIngestor
	ChatUC   ports.DocumentChatService
	Sessions ports.SessionReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []func()
	httpMetrics := metrics.NewHTTPServerMetrics("api")
	executorOpts := []resilience.Option{
		resilience.WithLogger(logger),
		resilience.WithStateListener(func(operation string, _, to resilience.State) {
			httpMetrics.SetBreakerState("api", operation, string(to))
		}),
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	closers = append(closers, closeSessions)

	ingestOpts := usecase.IngestOptions{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	}
	if cfg.StoragePath != "" {
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		ingestOpts.Storage = storage
	}
	if cfg.NATSURL != "" {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.EventPublish(), executorOpts...),
			ConfirmPublish:     true,
		})
		if err != nil {
			runClosers(closers)
			return nil, fmt.Errorf("init session events: %w", err)
		}
		ingestOpts.Events = publisher
		closers = append(closers, publisher.Close)
	}

	sanitizer, err := sanitize.Load(cfg.SanitizerRulesPath)
	if err != nil {
		runClosers(closers)
		return nil, fmt.Errorf("load sanitizer rules: %w", err)
	}

	generator, err := newGenerator(cfg, executorOpts)
	if err != nil {
		runClosers(closers)
		return nil, err
	}

	ingestUC := usecase.NewIngestDocumentUseCase(extractor.New(logger), sessions, ingestOpts)
	chatUC := usecase.NewChatUseCase(
		sessions,
		relevance.NewKeywordClassifier(relevance.Options{MinOverlap: cfg.RelevanceMinOverlap}),
		llm.NewPromptBuilder(cfg.PromptContextChars),
		llm.NewDeadlineCaller(generator, cfg.LLMTimeout, logger),
		sanitizer,
		logger,
	)

	logger.Info("bootstrap_complete",
		"session_backend", cfg.SessionBackend,
		"llm_backend", cfg.LLMBackend,
		"llm_model", cfg.OllamaGenModel,
		"llm_timeout_seconds", cfg.LLMTimeout.Seconds(),
		"events_enabled", ingestOpts.Events != nil,
		"archive_enabled", ingestOpts.Storage != nil,
	)

	return &App{
		Config:   cfg,
		Metrics:  httpMetrics,
		IngestUC: ingestUC,
		ChatUC:   chatUC,
		Sessions: chatUC,
		closeFn:  func() { runClosers(closers) },
	}, nil
}

func newSessionStore(ctx context.Context, cfg config.Config) (ports.SessionStore, func(), error) {
	switch cfg.SessionBackend {
	case "", "memory":
		return session.NewMemoryStore(), func() {}, nil
	case "ttl":
		return session.NewTTLStore(cfg.SessionTTL, cfg.SessionCleanupInterval), func() {}, nil
	case "redis":
		store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := postgres.NewSessionRepository(db, cfg.SessionTTL)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		stopSweeper := startExpirySweeper(repo, cfg.SessionCleanupInterval)
		return repo, func() {
			stopSweeper()
			_ = repo.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

type expiringStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// startExpirySweeper deletes expired sessions every interval until stopped.
func startExpirySweeper(store expiringStore, interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.DeleteExpired(ctx)
				if err != nil {
					slog.Warn("session_sweep_failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("session_sweep_completed", "deleted", n)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func newGenerator(cfg config.Config, executorOpts []resilience.Option) (ports.TextGenerator, error) {
	switch cfg.LLMBackend {
	case "", "http":
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, ollama.Options{
			HTTPTimeout:        cfg.LLMTimeout + 5*time.Second,
			ResilienceExecutor: resilience.NewExecutor(resilience.SingleAttempt(cfg.LLMBreakerEnabled), executorOpts...),
		}), nil
	case "cli":
		return ollamacli.New(cfg.OllamaCLIPath, cfg.OllamaGenModel), nil
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.LLMBackend)
	}
}

func runClosers(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
