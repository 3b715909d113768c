// Package llm holds the model-facing pieces that do not depend on a backend:
// prompt templates and the call-with-deadline wrapper.
package llm

import (
	"fmt"
	"strings"

	"github.com/kirillkom/document-chat/internal/infrastructure/textnorm"
)

const (
	// DefaultContextChars bounds the document excerpt embedded in a prompt.
	DefaultContextChars = 2500
	truncationMarker    = "..."
)

type PromptBuilder struct {
	contextChars int
}

func NewPromptBuilder(contextChars int) *PromptBuilder {
	if contextChars <= 0 {
		contextChars = DefaultContextChars
	}
	return &PromptBuilder{contextChars: contextChars}
}

func (b *PromptBuilder) Build(documentText, question string, recommendation bool) string {
	excerpt := b.Excerpt(documentText)
	question = strings.TrimSpace(question)
	if recommendation {
		return buildRecommendationPrompt(excerpt, question)
	}
	return buildAnswerPrompt(excerpt, question)
}

// Excerpt returns the document text cut to the context budget, with a marker
// appended when something was dropped.
func (b *PromptBuilder) Excerpt(documentText string) string {
	excerpt, truncated := textnorm.Truncate(documentText, b.contextChars)
	if truncated {
		return excerpt + truncationMarker
	}
	return excerpt
}

func buildRecommendationPrompt(excerpt, question string) string {
	return fmt.Sprintf(`Find every recommendation in the document below.
Count them and return them as a numbered list (1., 2., 3., ...).
Copy each recommendation exactly as it appears in the document.
Do not add any commentary, introductions, explanations or closing remarks.

Document:
%s

Question:
%s

Numbered recommendations:`, excerpt, question)
}

func buildAnswerPrompt(excerpt, question string) string {
	return fmt.Sprintf(`Answer the question directly and completely using only the document below.
Use the exact wording of the document where possible.
Do not add any commentary, introductions, explanations or references to "the document".

Document:
%s

Question:
%s

Answer:`, excerpt, question)
}
