package extractor

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

func extractPlainText(doc domain.Document) (string, error) {
	if !utf8.Valid(doc.RawBytes) {
		return textPlaceholder(doc), errInvalidUTF8
	}
	return string(doc.RawBytes), nil
}

func textPlaceholder(doc domain.Document) string {
	return fmt.Sprintf("Text document: %s", doc.Filename)
}
