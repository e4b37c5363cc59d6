package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	"github.com/kailas-cloud/bureaucratese/internal/repository/checkpoint"
	"github.com/kailas-cloud/bureaucratese/internal/repository/dataset"
	"github.com/kailas-cloud/bureaucratese/internal/textnorm"
	analyzeuc "github.com/kailas-cloud/bureaucratese/internal/usecase/analyze"
	batchuc "github.com/kailas-cloud/bureaucratese/internal/usecase/batch"
	healthuc "github.com/kailas-cloud/bureaucratese/internal/usecase/health"
	usageuc "github.com/kailas-cloud/bureaucratese/internal/usecase/usage"
)

// Analyzer builds the ad-hoc analysis service.
func (a *App) Analyzer() *analyzeuc.Service {
	svc := analyzeuc.New(a.Density, a.Logger).WithMaxBatchSize(a.Config.Analyze.MaxBatchSize)
	if a.Pre != nil {
		svc.WithPreprocessor(a.Pre)
	}
	return svc
}

// Usage builds the token usage report. Nil when no budget is configured.
func (a *App) Usage() *usageuc.Service {
	if a.Budget == nil {
		return nil
	}
	oc := a.Config.Embedding.OpenAI
	return usageuc.New(a.Budget, oc.Name, oc.Budget.CostPerMillionTokens)
}

// Health builds the health service over whatever is configured.
func (a *App) Health() *healthuc.Service {
	// nil interfaces, не typed nil
	var (
		pinger   healthuc.DBPinger
		embedder healthuc.EmbeddingChecker
	)
	if a.Store != nil {
		pinger = a.Store
	}
	if a.Embedder != nil {
		if hc, ok := a.Embedder.(healthuc.EmbeddingChecker); ok {
			embedder = hc
		}
	}
	return healthuc.New(pinger, embedder)
}

// OutputWriter is the result table writer with typed metric columns.
func OutputWriter() dataset.Writer {
	return dataset.Writer{
		Float: batchuc.FloatColumns,
		Int:   []string{batchuc.ColumnYear},
	}
}

// Batch builds the batch orchestrator and opens its checkpoint store. The
// caller closes the returned store.
func (a *App) Batch(outputPath string) (*batchuc.Service, checkpoint.Store, error) {
	bc := a.Config.Batch

	// каждая запись требует все три метрики
	if !a.Density.SemanticEnabled() {
		return nil, nil, fmt.Errorf("batch scoring needs an embedding provider: %w", domain.ErrModelUnavailable)
	}

	store, err := checkpoint.Open(bc.CheckpointDriver, bc.CheckpointPath)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint store: %w", err)
	}

	if outputPath == "" {
		outputPath = bc.OutputPath
	}

	var scorer batchuc.Scorer = a.Density
	if a.Pre != nil {
		scorer = &preprocessedScorer{inner: a.Density, pre: a.Pre}
	}

	opts := batchuc.Options{
		TextColumn:         bc.TextColumn,
		DateColumn:         bc.DateColumn,
		BatchSize:          bc.BatchSize,
		CheckpointInterval: bc.CheckpointInterval,
		OutputPath:         outputPath,
		LexiconVersion:     a.Lexicon.Version(),
		ModelID:            a.Embedder.ModelID(),
		Retry: batchuc.RetryPolicy{
			MaxAttempts:    bc.Retry.MaxAttempts,
			InitialBackoff: time.Duration(bc.Retry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(bc.Retry.MaxBackoffMs) * time.Millisecond,
		},
	}

	a.Logger.Debug("Batch service configured",
		zap.String("checkpoint_driver", bc.CheckpointDriver),
		zap.String("checkpoint_path", bc.CheckpointPath),
		zap.String("output", outputPath),
	)
	return batchuc.New(scorer, store, OutputWriter(), opts, a.Logger), store, nil
}

// preprocessedScorer normalizes text before every metric.
type preprocessedScorer struct {
	inner batchuc.Scorer
	pre   *textnorm.Preprocessor
}

func (p *preprocessedScorer) Basic(text string) (analysis.Result, error) {
	return p.inner.Basic(p.pre.Apply(text))
}

func (p *preprocessedScorer) Weighted(text string) (analysis.Result, error) {
	return p.inner.Weighted(p.pre.Apply(text))
}

func (p *preprocessedScorer) Semantic(ctx context.Context, text string) (analysis.Result, error) {
	return p.inner.Semantic(ctx, p.pre.Apply(text))
}
