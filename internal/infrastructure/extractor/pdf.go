package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/infrastructure/textnorm"
)

// extractPDF reads pages in document order and joins their text with newlines.
// Any page failure abandons the whole document.
func extractPDF(doc domain.Document) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc.RawBytes), int64(len(doc.RawBytes)))
	if err != nil {
		err = fmt.Errorf("open pdf: %w", err)
		return pdfPlaceholder(doc, err), err
	}

	var sb strings.Builder
	for pageNr := 1; pageNr <= reader.NumPage(); pageNr++ {
		page := reader.Page(pageNr)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			err = fmt.Errorf("page %d: %w", pageNr, err)
			return pdfPlaceholder(doc, err), err
		}
		sb.WriteString(textnorm.Normalize(text))
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}

func pdfPlaceholder(doc domain.Document, err error) string {
	return fmt.Sprintf("PDF document: %s (Error reading: %v)", doc.Filename, err)
}
