// Package bootstrap is the composition root shared by the API server and the CLIs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/config"
	"github.com/kailas-cloud/bureaucratese/internal/db"
	dbRedis "github.com/kailas-cloud/bureaucratese/internal/db/redis"
	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/lexicon"
	"github.com/kailas-cloud/bureaucratese/internal/progress"
	"github.com/kailas-cloud/bureaucratese/internal/repository/refstore"
	"github.com/kailas-cloud/bureaucratese/internal/segment"
	"github.com/kailas-cloud/bureaucratese/internal/textnorm"
	"github.com/kailas-cloud/bureaucratese/internal/usecase/density"
	embeddinguc "github.com/kailas-cloud/bureaucratese/internal/usecase/embedding"
	"github.com/kailas-cloud/bureaucratese/internal/usecase/refcache"
)

// Options tunes what New prepares.
type Options struct {
	// SkipReferences leaves the semantic metric disabled; the caller drives
	// App.RefCache itself.
	SkipReferences bool
	// Progress receives reference-build progress. Nil disables it.
	Progress progress.Reporter
}

// App holds the wired services.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     db.Store // nil when database.driver is none
	Lexicon   *lexicon.Lexicon
	Tokenizer domain.Tokenizer
	Embedder  refcache.Embedder          // nil when embedding.provider is none
	Budget    *embeddinguc.BudgetTracker // nil without openai limits
	RefCache  *refcache.Service          // nil when Embedder is nil
	Density   *density.Service
	Pre       *textnorm.Preprocessor // nil when preprocessing is off

	closers []func() error
}

// New wires lexicon, segmenter, store, embedding chain and the scorer.
// When an embedding provider is configured the reference set is loaded (or
// built) before New returns, unless opts.SkipReferences is set.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	lex, err := lexicon.LoadFile(cfg.Lexicon.Path)
	if err != nil {
		return nil, err
	}
	app.Lexicon = lex
	logger.Info("Lexicon loaded",
		zap.String("path", cfg.Lexicon.Path),
		zap.Int("entries", lex.Len()),
		zap.Int("official", len(lex.Official())),
		zap.String("version", lex.Version()),
	)

	tok, err := segment.New(lex, segment.Options{
		Driver:    cfg.Segmenter.Driver,
		DictFiles: cfg.Segmenter.DictFiles,
		HMM:       cfg.Segmenter.HMM,
	})
	if err != nil {
		return nil, fmt.Errorf("segmenter: %w", err)
	}
	app.Tokenizer = tok
	app.Density = density.New(lex, tok)

	if preprocessEnabled(cfg.Preprocess) {
		app.Pre = textnorm.New(cfg.Preprocess)
	}

	if cfg.Database.Enabled() {
		store, err := OpenStore(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.Store = store
		app.closers = append(app.closers, func() error { store.Close(); return nil })
		logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)
	}

	if !cfg.Embedding.Enabled() {
		return app, nil
	}

	app.Budget = BuildBudget(ctx, cfg, app.Store, logger)
	emb, closer, err := BuildEmbedder(cfg, app.Store, app.Budget, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	app.Embedder = emb

	app.RefCache = refcache.New(lex, emb, ReferenceStore(cfg.Reference, app.Store), logger)
	if opts.Progress != nil {
		app.RefCache.WithProgress(opts.Progress)
	}

	if opts.SkipReferences {
		return app, nil
	}
	if err := app.EnableSemantic(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// EnableSemantic loads the reference set and turns on the semantic metric.
func (a *App) EnableSemantic(ctx context.Context) error {
	if a.RefCache == nil {
		return fmt.Errorf("no embedding provider configured: %w", domain.ErrModelUnavailable)
	}
	refs, err := a.RefCache.Load(ctx)
	if err != nil {
		return fmt.Errorf("reference set: %w", err)
	}
	a.Density.WithSemantic(a.Embedder, refs)
	a.Logger.Info("Semantic metric enabled",
		zap.String("model", a.Embedder.ModelID()),
		zap.Int("references", refs.Len()),
		zap.Int("dim", refs.Dim()),
	)
	return nil
}

// Close releases the store and the embedding provider.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore connects to Redis/Valkey and waits until it answers.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      cfg.Addrs,
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: "bureaucratese",
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
	}
	return store, nil
}

// ReferenceStore picks the persistence backend of the reference set.
func ReferenceStore(cfg config.ReferenceConfig, store db.Store) refcache.Store {
	if cfg.Store == config.ReferenceStoreKV && store != nil {
		return refstore.NewKVStore(store)
	}
	return refstore.NewFileStore(cfg.Dir)
}

func preprocessEnabled(o textnorm.Options) bool {
	return o.NFKC || o.RemoveSpecialChars || o.CollapseSpaces || len(o.Rules) > 0
}
