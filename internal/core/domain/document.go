package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	FormatTXT  Format = "txt"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatDOC  Format = "doc"
)

// SupportedFormats lists the upload extensions accepted at the ingestion boundary.
func SupportedFormats() []Format {
	return []Format{FormatTXT, FormatPDF, FormatDOCX, FormatDOC}
}

// FormatFromFilename resolves the declared format from a file extension.
func FormatFromFilename(filename string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	switch ext {
	case ".txt":
		return FormatTXT, nil
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".doc":
		return FormatDOC, nil
	default:
		return "", WrapError(ErrUnsupportedFormat, "detect format", fmt.Errorf("extension %q", ext))
	}
}

// Document is an uploaded file as received. It is not modified after construction.
type Document struct {
	Filename string
	Format   Format
	RawBytes []byte
}

type ExtractionResult struct {
	Text              string `json:"text"`
	ExtractionOK      bool   `json:"extraction_ok"`
	DiagnosticMessage string `json:"diagnostic_message,omitempty"`
}

// Session binds the normalized text of one upload to an opaque identifier.
type Session struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Format       Format    `json:"format"`
	Content      string    `json:"content"`
	Summary      string    `json:"summary,omitempty"`
	ExtractionOK bool      `json:"extraction_ok"`
	Warning      string    `json:"warning,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// IngestResult is returned by the ingestion boundary.
type IngestResult struct {
	SessionID    string `json:"session_id"`
	Filename     string `json:"filename"`
	Format       Format `json:"format"`
	ExtractionOK bool   `json:"extraction_ok"`
	ContentChars int    `json:"content_chars"`
	Warning      string `json:"warning,omitempty"`
}
