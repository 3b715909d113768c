package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/document-chat/internal/core/domain"
)

const (
	docxBodyEntry  = "word/document.xml"
	wordprocessing = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	// Upper bound on the decompressed body we are willing to parse.
	maxDocxBodyBytes = 64 << 20
)

var errDocxBodyMissing = errors.New(docxBodyEntry + " not found in archive")

// extractDocx joins the text of every w:t run in document order with single spaces.
// An archive without a main body yields empty text; the thin-content check
// then replaces it.
func extractDocx(doc domain.Document) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(doc.RawBytes), int64(len(doc.RawBytes)))
	if err != nil {
		err = fmt.Errorf("open zip: %w", err)
		return wordPlaceholder(doc, err), err
	}

	var body *zip.File
	for _, f := range archive.File {
		if f.Name == docxBodyEntry {
			body = f
			break
		}
	}
	if body == nil {
		return "", errDocxBodyMissing
	}

	rc, err := body.Open()
	if err != nil {
		err = fmt.Errorf("open %s: %w", docxBodyEntry, err)
		return wordPlaceholder(doc, err), err
	}
	defer rc.Close()

	runs, err := collectTextRuns(io.LimitReader(rc, maxDocxBodyBytes))
	if err != nil {
		err = fmt.Errorf("parse %s: %w", docxBodyEntry, err)
		return wordPlaceholder(doc, err), err
	}
	return strings.Join(runs, " "), nil
}

func collectTextRuns(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		runs    []string
		current strings.Builder
		inRun   bool
	)
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return runs, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if isTextRun(t.Name) {
				inRun = true
				current.Reset()
			}
		case xml.CharData:
			if inRun {
				current.Write(t)
			}
		case xml.EndElement:
			if isTextRun(t.Name) && inRun {
				inRun = false
				if current.Len() > 0 {
					runs = append(runs, current.String())
				}
			}
		}
	}
}

func isTextRun(name xml.Name) bool {
	return name.Local == "t" && name.Space == wordprocessing
}

func wordPlaceholder(doc domain.Document, err error) string {
	return fmt.Sprintf("Word document: %s (Error: %v)", doc.Filename, err)
}
