package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload: extract, normalize, open a session.
type DocumentIngestor interface {
	Ingest(ctx context.Context, filename string, body io.Reader) (*domain.IngestResult, error)
}

// DocumentChatService answers a question against the content of one session.
type DocumentChatService interface {
	Ask(ctx context.Context, query domain.Query) (*domain.Answer, error)
}

// SessionReader is the inbound read model for session metadata.
type SessionReader interface {
	GetSession(ctx context.Context, id string) (*domain.Session, error)
}
