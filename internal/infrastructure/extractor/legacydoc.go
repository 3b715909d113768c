package extractor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

// minLegacyDocChars is how long a decoded .doc must be before it is trusted.
const minLegacyDocChars = 100

var errNoUsableEncoding = errors.New("no candidate encoding produced readable text")

type candidateEncoding struct {
	name   string
	decode func([]byte) (string, error)
}

// Tried in order; the first decode that yields non-trivial text wins.
var legacyDocEncodings = []candidateEncoding{
	{name: "utf-8", decode: func(raw []byte) (string, error) {
		return strings.ToValidUTF8(string(raw), ""), nil
	}},
	{name: "windows-1252", decode: func(raw []byte) (string, error) {
		out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		return string(out), err
	}},
	{name: "iso-8859-1", decode: func(raw []byte) (string, error) {
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		return string(out), err
	}},
}

func extractLegacyDoc(doc domain.Document) (string, error) {
	for _, enc := range legacyDocEncodings {
		text, err := enc.decode(doc.RawBytes)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" && utf8.RuneCountInString(text) > minLegacyDocChars {
			return text, nil
		}
	}
	return legacyDocPlaceholder(doc), errNoUsableEncoding
}

func legacyDocPlaceholder(doc domain.Document) string {
	return fmt.Sprintf(
		"Word document: %s (Content extraction failed - please try converting to PDF or text format)",
		doc.Filename,
	)
}
