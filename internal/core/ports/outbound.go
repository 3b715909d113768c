package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

// TextExtractor converts a raw document into normalized text. It never fails:
// every problem degrades to a placeholder text with ExtractionOK=false.
type TextExtractor interface {
	Extract(ctx context.Context, doc domain.Document) domain.ExtractionResult
}

// SessionStore owns sessions. Put assigns a fresh identifier and returns it.
// Get returns an error of kind domain.ErrSessionNotFound for unknown ids.
type SessionStore interface {
	Put(ctx context.Context, session domain.Session) (string, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
}

// RelevanceClassifier decides whether a question pertains to a document.
type RelevanceClassifier interface {
	Classify(question, documentText string) domain.Classification
}

// PromptBuilder assembles the model instruction for a question.
type PromptBuilder interface {
	Build(documentText, question string, recommendation bool) string
}

// ResponseSanitizer strips model commentary. It never fails and never returns
// an empty string; related selects the canned fallback.
type ResponseSanitizer interface {
	Sanitize(raw string, related bool) string
	Fallback(related bool) string
}

// ModelCaller performs one bounded external model call.
type ModelCaller interface {
	Call(ctx context.Context, prompt string) domain.ModelResult
}

// TextGenerator is a raw model backend.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ObjectStorage archives raw uploads.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// SessionEventPublisher announces newly created sessions.
type SessionEventPublisher interface {
	PublishSessionCreated(ctx context.Context, session domain.Session) error
}
