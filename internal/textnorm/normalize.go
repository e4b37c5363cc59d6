// Package textnorm prepares raw text for scoring.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Rule is a literal find-and-replace step.
type Rule struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Options selects the preprocessing steps. Steps run in field order.
type Options struct {
	NFKC               bool   `yaml:"nfkc"`
	RemoveSpecialChars bool   `yaml:"remove_special_chars"`
	CollapseSpaces     bool   `yaml:"collapse_spaces"`
	Rules              []Rule `yaml:"rules"`
}

// Preprocessor applies Options to texts.
type Preprocessor struct {
	opts Options
}

// New creates a Preprocessor.
func New(opts Options) *Preprocessor {
	return &Preprocessor{opts: opts}
}

// Apply runs the configured steps. Empty input is returned unchanged.
func (p *Preprocessor) Apply(text string) string {
	if text == "" {
		return text
	}
	if p.opts.NFKC {
		text = norm.NFKC.String(text)
	}
	if p.opts.RemoveSpecialChars {
		// unicode.IsPrint keeps the ASCII space and drops other separators and controls.
		text = strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return -1
		}, text)
	}
	if p.opts.CollapseSpaces {
		text = strings.Join(strings.Fields(text), " ")
	}
	for _, r := range p.opts.Rules {
		if r.Pattern == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.Pattern, r.Replacement)
	}
	return text
}
