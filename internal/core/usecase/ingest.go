package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/core/ports"
	"github.com/kirillkom/document-chat/internal/infrastructure/textnorm"
)

const (
	DefaultMaxUploadBytes = 25 << 20
	summaryChars          = 1000
)

type IngestOptions struct {
	// Storage archives the raw upload when set.
	Storage ports.ObjectStorage
	// Events announces new sessions when set.
	Events         ports.SessionEventPublisher
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type IngestDocumentUseCase struct {
	extractor ports.TextExtractor
	sessions  ports.SessionStore
	storage   ports.ObjectStorage
	events    ports.SessionEventPublisher
	maxBytes  int64
	logger    *slog.Logger
}

func NewIngestDocumentUseCase(
	extractor ports.TextExtractor,
	sessions ports.SessionStore,
	opts IngestOptions,
) *IngestDocumentUseCase {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		extractor: extractor,
		sessions:  sessions,
		storage:   opts.Storage,
		events:    opts.Events,
		maxBytes:  opts.MaxUploadBytes,
		logger:    opts.Logger,
	}
}

func (uc *IngestDocumentUseCase) Ingest(
	ctx context.Context,
	filename string,
	body io.Reader,
) (*domain.IngestResult, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("no file selected"))
	}
	format, err := domain.FormatFromFilename(filename)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest", fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}

	extraction := uc.extractor.Extract(ctx, domain.Document{
		Filename: filename,
		Format:   format,
		RawBytes: raw,
	})
	content := textnorm.Normalize(extraction.Text)
	contentChars := textnorm.RuneLen(content)
	summary, _ := textnorm.Truncate(content, summaryChars)

	session := domain.Session{
		Filename:     filename,
		Format:       format,
		Content:      content,
		Summary:      summary,
		ExtractionOK: extraction.ExtractionOK,
		Warning:      extraction.DiagnosticMessage,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := uc.sessions.Put(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	session.ID = id

	uc.archive(ctx, session, raw)
	uc.announce(ctx, session)

	uc.logger.InfoContext(ctx, "document_ingested",
		"session_id", id,
		"filename", filename,
		"format", string(format),
		"bytes", len(raw),
		"content_chars", contentChars,
		"extraction_ok", extraction.ExtractionOK,
	)

	return &domain.IngestResult{
		SessionID:    id,
		Filename:     filename,
		Format:       format,
		ExtractionOK: extraction.ExtractionOK,
		ContentChars: contentChars,
		Warning:      extraction.DiagnosticMessage,
	}, nil
}

func (uc *IngestDocumentUseCase) archive(ctx context.Context, session domain.Session, raw []byte) {
	if uc.storage == nil {
		return
	}
	key := fmt.Sprintf("%s_%s", session.ID, sanitizeFilename(session.Filename))
	if err := uc.storage.Save(ctx, key, bytes.NewReader(raw)); err != nil {
		uc.logger.WarnContext(ctx, "upload_archive_failed", "session_id", session.ID, "key", key, "error", err)
	}
}

func (uc *IngestDocumentUseCase) announce(ctx context.Context, session domain.Session) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishSessionCreated(ctx, session); err != nil {
		uc.logger.WarnContext(ctx, "session_event_publish_failed", "session_id", session.ID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
