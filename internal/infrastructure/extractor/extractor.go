// Package extractor turns uploaded documents into normalized plain text.
//
// Extraction is total: parse errors, missing archive entries, undecodable
// bytes and even panics inside third-party parsers degrade to a readable
// placeholder text instead of failing the upload.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/infrastructure/textnorm"
)

// MinContentChars is the shortest normalized text accepted as a real extraction.
const MinContentChars = 50

var errThinContent = errors.New("extracted text is too short")

type Extractor struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.Document) domain.ExtractionResult {
	raw, err := e.extractRaw(doc)
	text := textnorm.Normalize(raw)

	if textnorm.RuneLen(text) < MinContentChars {
		if err == nil {
			err = errThinContent
		}
		text = thinContentPlaceholder(doc)
	}

	if err != nil {
		e.logger.WarnContext(ctx, "document_extraction_degraded",
			"filename", doc.Filename,
			"format", string(doc.Format),
			"bytes", len(doc.RawBytes),
			"error", err,
		)
		return domain.ExtractionResult{
			Text:              text,
			ExtractionOK:      false,
			DiagnosticMessage: fmt.Sprintf("%s extraction: %v", doc.Format, err),
		}
	}
	return domain.ExtractionResult{Text: text, ExtractionOK: true}
}

// extractRaw dispatches on the declared format. On failure the returned text is
// already the branch's placeholder; the error only feeds diagnostics.
func (e *Extractor) extractRaw(doc domain.Document) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parser panic: %v", r)
			text = failurePlaceholder(doc, err)
		}
	}()

	switch doc.Format {
	case domain.FormatTXT:
		return extractPlainText(doc)
	case domain.FormatPDF:
		return extractPDF(doc)
	case domain.FormatDOCX:
		return extractDocx(doc)
	case domain.FormatDOC:
		return extractLegacyDoc(doc)
	default:
		err := domain.WrapError(domain.ErrUnsupportedFormat, "extract", fmt.Errorf("format %q", doc.Format))
		return fmt.Sprintf("Document: %s (Unsupported format)", doc.Filename), err
	}
}

func failurePlaceholder(doc domain.Document, err error) string {
	switch doc.Format {
	case domain.FormatTXT:
		return textPlaceholder(doc)
	case domain.FormatPDF:
		return pdfPlaceholder(doc, err)
	case domain.FormatDOCX, domain.FormatDOC:
		return wordPlaceholder(doc, err)
	default:
		return fmt.Sprintf("Document: %s (Error: %v)", doc.Filename, err)
	}
}

func thinContentPlaceholder(doc domain.Document) string {
	return fmt.Sprintf(
		"WARNING: Document content extraction failed for %s (%s). Please try a different file format.",
		doc.Filename, doc.Format,
	)
}
