package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/config"
	"github.com/kailas-cloud/bureaucratese/internal/db"
	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/metrics"
	budgetrepo "github.com/kailas-cloud/bureaucratese/internal/repository/budget"
	"github.com/kailas-cloud/bureaucratese/internal/repository/embcache"
	"github.com/kailas-cloud/bureaucratese/internal/transport/onnx"
	openaiEmb "github.com/kailas-cloud/bureaucratese/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/bureaucratese/internal/usecase/embedding"
	"github.com/kailas-cloud/bureaucratese/internal/usecase/refcache"
)

// Budget counter TTLs: a day key outlives its day, a month key its month.
const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// BuildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented.
// The provider is chosen by embedding.provider; a provider that cannot be
// constructed is reported as domain.ErrModelUnavailable. budget may be nil.
// The returned closer may be nil.
func BuildEmbedder(
	cfg config.Config, store db.Store, budget *embeddinguc.BudgetTracker, logger *zap.Logger,
) (refcache.Embedder, func() error, error) {
	var (
		base     domain.Embedder
		closer   func() error
		provider string
		model    string
	)

	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		oc := cfg.Embedding.OpenAI
		if oc.APIKey == "" {
			return nil, nil, fmt.Errorf("embedding.openai.api_key is empty: %w", domain.ErrModelUnavailable)
		}
		provider, model = oc.Name, oc.Model
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     oc.APIKey,
			BaseURL:    oc.BaseURL,
			Model:      oc.Model,
			Dimensions: oc.Dimensions,
			Provider:   oc.Name,
			Logger:     logger,
		})
	case config.ProviderONNX:
		xc := cfg.Embedding.ONNX
		e, err := onnx.NewEmbedder(onnx.Config{
			LibraryPath:   xc.LibraryPath,
			ModelPath:     xc.ModelPath,
			TokenizerPath: xc.TokenizerPath,
			ModelID:       xc.ModelID,
			MaxSeqLen:     xc.MaxSeqLen,
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, err
		}
		provider, model = config.ProviderONNX, e.ModelID()
		base, closer = e, e.Close
	default:
		return nil, nil, fmt.Errorf("embedding provider %q: %w", cfg.Embedding.Provider, domain.ErrModelUnavailable)
	}

	embedder := base
	if cfg.Embedding.Cache && store != nil {
		embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	}

	// Pass nil interface (not typed nil pointer!) if budget is not configured.
	var checker embeddinguc.BudgetChecker
	if budget != nil {
		checker = budget
	}

	logger.Info("Embedder created",
		zap.String("provider", provider),
		zap.String("model", model),
		zap.Bool("cache", cfg.Embedding.Cache && store != nil),
		zap.Bool("budget", checker != nil),
	)
	return embeddinguc.NewInstrumentedEmbedder(embedder, provider, model, checker, logger), closer, nil
}

// BuildBudget returns a tracker only for the remote provider with limits set.
// Counters are restored from store when one is given.
func BuildBudget(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) *embeddinguc.BudgetTracker {
	if cfg.Embedding.Provider != config.ProviderOpenAI {
		return nil
	}
	bc := cfg.Embedding.OpenAI.Budget
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}

	action := embeddinguc.BudgetActionWarn
	if bc.Action == "reject" {
		action = embeddinguc.BudgetActionReject
	}
	tracker := embeddinguc.NewBudgetTracker(
		cfg.Embedding.OpenAI.Name, bc.DailyTokenLimit, bc.MonthlyTokenLimit, action, logger,
	)
	if store != nil {
		tracker.WithStore(ctx, budgetrepo.New(store, budgetrepo.TTLs{Daily: budgetDailyTTL, Monthly: budgetMonthlyTTL}))
	}
	return tracker
}
