package density

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
)

// Service scores texts for official-discourse density.
// Safe for concurrent use when its collaborators are.
type Service struct {
	lex   Lexicon
	tok   Tokenizer
	embed Embedder
	refs  ReferenceSet
}

// New creates a scorer for the lexical metrics.
func New(lex Lexicon, tok Tokenizer) *Service {
	return &Service{lex: lex, tok: tok}
}

// WithSemantic enables the semantic metric.
func (s *Service) WithSemantic(embed Embedder, refs ReferenceSet) *Service {
	s.embed = embed
	s.refs = refs
	return s
}

// SemanticEnabled reports whether Semantic can be scored.
func (s *Service) SemanticEnabled() bool { return s.embed != nil && s.refs != nil }

type scoreFunc func(s *Service, ctx context.Context, text string) (analysis.Result, error)

var scorers = map[metric.Kind]scoreFunc{
	metric.Basic: func(s *Service, _ context.Context, text string) (analysis.Result, error) {
		return s.Basic(text)
	},
	metric.Weighted: func(s *Service, _ context.Context, text string) (analysis.Result, error) {
		return s.Weighted(text)
	},
	metric.Semantic: (*Service).Semantic,
}

// Score dispatches to the scorer of kind.
func (s *Service) Score(ctx context.Context, kind metric.Kind, text string) (analysis.Result, error) {
	fn, ok := scorers[kind]
	if !ok {
		return analysis.Result{}, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, kind)
	}
	return fn(s, ctx, text)
}

// Basic is the share of tokens that are official words.
func (s *Service) Basic(text string) (analysis.Result, error) {
	if isBlank(text) {
		return analysis.Zero(metric.Basic), nil
	}
	tokens, err := s.segment(text)
	if err != nil {
		return analysis.Result{}, err
	}
	if len(tokens) == 0 {
		return analysis.Zero(metric.Basic), nil
	}

	matched := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if s.lex.IsOfficial(t) {
			matched = append(matched, t)
		}
	}
	density := float64(len(matched)) / float64(len(tokens))
	return analysis.Lexical(metric.Basic, density, matched, len(tokens)), nil
}

// Weighted is the frequency mass of official tokens over the frequency mass of
// all tokens. Unknown tokens weigh 1.
func (s *Service) Weighted(text string) (analysis.Result, error) {
	if isBlank(text) {
		return analysis.Zero(metric.Weighted), nil
	}
	tokens, err := s.segment(text)
	if err != nil {
		return analysis.Result{}, err
	}

	matched := make([]string, 0, len(tokens))
	var officialMass, totalMass float64
	for _, t := range tokens {
		f := s.lex.FrequencyOf(t)
		totalMass += f
		if s.lex.IsOfficial(t) {
			matched = append(matched, t)
			officialMass += f
		}
	}

	var density float64
	if totalMass > 0 {
		density = officialMass / totalMass
	}
	return analysis.Lexical(metric.Weighted, density, matched, len(tokens)), nil
}

// Semantic compares the whole-text embedding with every reference vector and
// maps the weighted cosine similarity onto [0, 1].
func (s *Service) Semantic(ctx context.Context, text string) (analysis.Result, error) {
	if isBlank(text) {
		return analysis.Zero(metric.Semantic), nil
	}
	if !s.SemanticEnabled() {
		return analysis.Result{}, fmt.Errorf("semantic metric: %w", domain.ErrModelUnavailable)
	}

	res, err := s.embed.Embed(ctx, text)
	if err != nil {
		return analysis.Result{}, embeddingError(err)
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)

	if len(res.Embedding) != s.refs.Dim() {
		return analysis.Result{}, fmt.Errorf(
			"%w: text embedding has dimension %d, reference set %d",
			domain.ErrEmbeddingUnavailable, len(res.Embedding), s.refs.Dim(),
		)
	}

	var ws float64
	for i := 0; i < s.refs.Len(); i++ {
		ws += cosine(res.Embedding, s.refs.Vector(i)) * s.refs.Weight(i)
	}
	return analysis.SemanticResult(ws), nil
}

// segment tokenizes text and drops whitespace-only tokens.
func (s *Service) segment(text string) ([]string, error) {
	raw, err := s.tok.Segment(text)
	if err != nil {
		if errors.Is(err, domain.ErrTokenizerUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenizerUnavailable, err)
	}
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if strings.TrimSpace(t) != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

func embeddingError(err error) error {
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
}

func isBlank(text string) bool { return strings.TrimSpace(text) == "" }
