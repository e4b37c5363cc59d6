package analyze

import (
	"context"

	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/domain/metric"
)

// Scorer computes one metric for one text.
type Scorer interface {
	Score(ctx context.Context, kind metric.Kind, text string) (analysis.Result, error)
	SemanticEnabled() bool
}

// Preprocessor normalizes text before scoring.
type Preprocessor interface {
	Apply(text string) string
}
