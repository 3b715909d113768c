package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/core/ports"
	"github.com/kirillkom/document-chat/internal/infrastructure/textnorm"
)

type ChatUseCase struct {
	sessions   ports.SessionStore
	classifier ports.RelevanceClassifier
	prompts    ports.PromptBuilder
	model      ports.ModelCaller
	sanitizer  ports.ResponseSanitizer
	logger     *slog.Logger
}

func NewChatUseCase(
	sessions ports.SessionStore,
	classifier ports.RelevanceClassifier,
	prompts ports.PromptBuilder,
	model ports.ModelCaller,
	sanitizer ports.ResponseSanitizer,
	logger *slog.Logger,
) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		sessions:   sessions,
		classifier: classifier,
		prompts:    prompts,
		model:      model,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

// Ask answers one question against a stored session. Model timeouts and
// failures produce a canned answer with zero confidence, never an error.
func (uc *ChatUseCase) Ask(ctx context.Context, query domain.Query) (*domain.Answer, error) {
	session, err := uc.GetSession(ctx, query.SessionID)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(query.Message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("message is required"))
	}

	content := textnorm.Normalize(session.Content)
	cls := uc.classifier.Classify(message, content)
	prompt := uc.prompts.Build(content, message, cls.IsRecommendationQuestion)

	result := uc.model.Call(ctx, prompt)
	if !result.OK() {
		outcome := domain.OutcomeModelFailed
		if result.Status == domain.ModelTimedOut {
			outcome = domain.OutcomeModelTimeout
		}
		uc.logger.WarnContext(ctx, "chat_model_unavailable",
			"session_id", session.ID,
			"status", string(result.Status),
			"reason", result.Reason,
			"is_related", cls.IsRelated,
		)
		return &domain.Answer{
			Text:       uc.sanitizer.Fallback(cls.IsRelated),
			IsRelated:  cls.IsRelated,
			Confidence: domain.ConfidenceFailed,
			Outcome:    outcome,
		}, nil
	}

	text := uc.sanitizer.Sanitize(result.Text, cls.IsRelated)
	outcome := domain.OutcomeAnswered
	if text == uc.sanitizer.Fallback(cls.IsRelated) {
		outcome = domain.OutcomeFallback
	}

	uc.logger.DebugContext(ctx, "chat_answered",
		"session_id", session.ID,
		"is_related", cls.IsRelated,
		"recommendation", cls.IsRecommendationQuestion,
		"overlap", cls.Overlap,
		"prompt_chars", len(prompt),
		"raw_chars", len(result.Text),
	)

	return &domain.Answer{
		Text:       text,
		IsRelated:  cls.IsRelated,
		Confidence: domain.ConfidenceFor(cls.IsRelated),
		Outcome:    outcome,
	}, nil
}

func (uc *ChatUseCase) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "get session", fmt.Errorf("session id is required"))
	}
	session, err := uc.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}
