// Package sanitize strips model boilerplate from generated answers.
package sanitize

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

const (
	// MinAnswerChars is the shortest cleaned answer returned as-is.
	MinAnswerChars = 10

	FallbackRelated   = "I couldn't find specific information about that in the document. Could you please rephrase your question?"
	FallbackUnrelated = "Your question doesn't seem to be related to the uploaded document. Please ask something about its content."
)

type RuleSpec struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Replace string `yaml:"replace"`
}

type ruleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// Rule is one compiled text transform.
type Rule struct {
	Name    string
	re      *regexp.Regexp
	replace string
}

func CompileRule(spec RuleSpec) (Rule, error) {
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("compile rule %q: %w", spec.Name, err)
	}
	return Rule{Name: spec.Name, re: re, replace: spec.Replace}, nil
}

func (r Rule) Apply(text string) string {
	return r.re.ReplaceAllString(strings.TrimSpace(text), r.replace)
}

type Sanitizer struct {
	rules []Rule
}

// ParseRules decodes a YAML rule document.
func ParseRules(raw []byte) ([]RuleSpec, error) {
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode sanitizer rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("decode sanitizer rules: no rules defined")
	}
	return file.Rules, nil
}

func New(specs []RuleSpec) (*Sanitizer, error) {
	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := CompileRule(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &Sanitizer{rules: rules}, nil
}

// Load builds a Sanitizer from a rules file, or from the built-in rules when
// path is empty.
func Load(path string) (*Sanitizer, error) {
	raw := defaultRules
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read sanitizer rules: %w", err)
		}
		raw = data
	}
	specs, err := ParseRules(raw)
	if err != nil {
		return nil, err
	}
	return New(specs)
}

// Default returns the Sanitizer with built-in rules.
func Default() *Sanitizer {
	s, err := Load("")
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Sanitizer) Rules() []Rule {
	return s.rules
}

func (s *Sanitizer) Sanitize(raw string, related bool) string {
	text := strings.TrimSpace(raw)
	for _, rule := range s.rules {
		text = rule.Apply(text)
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinAnswerChars {
		return s.Fallback(related)
	}
	return text
}

func (s *Sanitizer) Fallback(related bool) string {
	if related {
		return FallbackRelated
	}
	return FallbackUnrelated
}
