// Package textnorm holds the text clean-up shared by extraction and query handling.
package textnorm

import (
	"strings"
	"unicode/utf8"
)

// Normalize drops NUL characters, collapses every whitespace run into one
// space and trims both ends. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.Join(strings.Fields(text), " ")
}

// WordSet lower-cases text and splits it on whitespace into a set.
func WordSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// Truncate cuts text to at most limit runes. The second result reports whether
// anything was cut.
func Truncate(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", text != ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	count := 0
	for idx := range text {
		if count == limit {
			return text[:idx], true
		}
		count++
	}
	return text, false
}

// RuneLen is the length of text in characters.
func RuneLen(text string) int {
	return utf8.RuneCountInString(text)
}
