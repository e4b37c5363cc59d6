// Package analyze serves ad-hoc density analysis of single texts and small
// text batches.
package analyze

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
)

// MaxBatchSize is the default cap on texts per AnalyzeBatch call.
const MaxBatchSize = 100

// Output is the result of Analyze. Full is nil in simple mode.
type Output struct {
	Kind    metric.Kind
	Density float64
	Full    *analysis.Result
}

// BatchItem is the per-text outcome of AnalyzeBatch.
type BatchItem struct {
	Result analysis.Result
	Err    error
}

// Service runs ad-hoc analyses.
type Service struct {
	scorer       Scorer
	pre          Preprocessor
	maxBatchSize int
	logger       *zap.Logger
}

// New creates an analysis service.
func New(scorer Scorer, logger *zap.Logger) *Service {
	return &Service{scorer: scorer, maxBatchSize: MaxBatchSize, logger: logger}
}

// WithPreprocessor normalizes every text before scoring.
func (s *Service) WithPreprocessor(p Preprocessor) *Service {
	s.pre = p
	return s
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Analyze scores text with one metric.
func (s *Service) Analyze(ctx context.Context, text string, kind metric.Kind, mode metric.OutputMode) (Output, error) {
	res, err := s.score(ctx, kind, text)
	if err != nil {
		return Output{}, err
	}

	out := Output{Kind: kind, Density: res.Density}
	if mode == metric.OutputFull {
		out.Full = &res
	}
	return out, nil
}

// AnalyzeBatch scores texts in order with one metric. A failing text does not
// affect the others.
func (s *Service) AnalyzeBatch(ctx context.Context, texts []string, kind metric.Kind) ([]BatchItem, error) {
	if len(texts) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: batch size %d exceeds %d", domain.ErrInvalidInput, len(texts), s.maxBatchSize)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMetric, kind)
	}

	items := make([]BatchItem, len(texts))
	for i, text := range texts {
		res, err := s.score(ctx, kind, text)
		if err != nil {
			s.logger.Debug("Batch item failed", zap.Int("index", i), zap.Error(err))
			items[i] = BatchItem{Err: err}
			continue
		}
		items[i] = BatchItem{Result: res}
	}
	return items, nil
}

// AnalyzeAll scores text with every available metric. The semantic metric is
// left out when no embedding provider is configured.
func (s *Service) AnalyzeAll(ctx context.Context, text string) (map[metric.Kind]analysis.Result, error) {
	out := make(map[metric.Kind]analysis.Result, len(metric.All()))
	for _, kind := range metric.All() {
		if kind == metric.Semantic && !s.scorer.SemanticEnabled() {
			continue
		}
		res, err := s.score(ctx, kind, text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		out[kind] = res
	}
	return out, nil
}

func (s *Service) score(ctx context.Context, kind metric.Kind, text string) (analysis.Result, error) {
	if s.pre != nil {
		text = s.pre.Apply(text)
	}
	res, err := s.scorer.Score(ctx, kind, text)
	if err != nil {
		return analysis.Result{}, fmt.Errorf("score %s: %w", kind, err)
	}
	return res, nil
}
