// Package relevance decides whether a question is about the uploaded document.
package relevance

import (
	"strings"

	"github.com/kirillkom/document-chat/internal/core/domain"
	"github.com/kirillkom/document-chat/internal/infrastructure/textnorm"
)

// DefaultMinOverlap is the number of shared words a question must exceed to
// count as related when it carries no relevance keyword. NewKeywordClassifier
// uses it when Options.MinOverlap is negative.
const DefaultMinOverlap = 2

var DefaultRelevanceKeywords = []string{
	"recommendation", "recommend", "suggest", "propose",
	"what", "how", "why", "when", "where", "who", "which",
	"summary", "summarize", "list", "explain", "describe", "main", "key",
}

var DefaultRecommendationKeywords = []string{
	"recommendation", "recommend", "suggest", "propose", "advice", "advise",
}

type Options struct {
	// MinOverlap is exclusive: a question is related when it shares more than
	// MinOverlap words with the document. Zero means any shared word counts.
	// Negative values select DefaultMinOverlap.
	MinOverlap             int
	RelevanceKeywords      []string
	RecommendationKeywords []string
}

// KeywordClassifier matches keywords as substrings of the lower-cased question
// and counts whitespace-separated words shared with the document.
type KeywordClassifier struct {
	minOverlap             int
	relevanceKeywords      []string
	recommendationKeywords []string
}

func NewKeywordClassifier(opts Options) *KeywordClassifier {
	if opts.MinOverlap < 0 {
		opts.MinOverlap = DefaultMinOverlap
	}
	if len(opts.RelevanceKeywords) == 0 {
		opts.RelevanceKeywords = DefaultRelevanceKeywords
	}
	if len(opts.RecommendationKeywords) == 0 {
		opts.RecommendationKeywords = DefaultRecommendationKeywords
	}
	return &KeywordClassifier{
		minOverlap:             opts.MinOverlap,
		relevanceKeywords:      lowerAll(opts.RelevanceKeywords),
		recommendationKeywords: lowerAll(opts.RecommendationKeywords),
	}
}

func (c *KeywordClassifier) Classify(question, documentText string) domain.Classification {
	lowered := strings.ToLower(question)
	overlap := sharedWords(question, documentText)

	return domain.Classification{
		IsRelated:                containsAny(lowered, c.relevanceKeywords) || overlap > c.minOverlap,
		IsRecommendationQuestion: containsAny(lowered, c.recommendationKeywords),
		Overlap:                  overlap,
	}
}

func sharedWords(question, documentText string) int {
	questionWords := textnorm.WordSet(question)
	if len(questionWords) == 0 {
		return 0
	}
	docWords := textnorm.WordSet(documentText)
	count := 0
	for w := range questionWords {
		if _, ok := docWords[w]; ok {
			count++
		}
	}
	return count
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
