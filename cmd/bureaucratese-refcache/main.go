// Command bureaucratese-refcache precomputes the reference embeddings of the
// official vocabulary so the API and batch runs start without embedding it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/bootstrap"
	"github.com/kailas-cloud/bureaucratese/internal/config"
	logpkg "github.com/kailas-cloud/bureaucratese/internal/logger"
	"github.com/kailas-cloud/bureaucratese/internal/metrics"
	"github.com/kailas-cloud/bureaucratese/internal/progress"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "config file (default: config/$ENV.yaml)")
		force      = flag.Bool("force", false, "rebuild even if a cached set exists")
		noProgress = flag.Bool("no-progress", false, "disable the progress bar")
	)
	flag.Parse()

	env := config.GetEnv()
	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 2
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, "bureaucratese-refcache")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Embedding.Enabled() {
		logger.Error("embedding.provider is none: nothing to cache")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterEmbeddingMetrics(prometheus.DefaultRegisterer)

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{
		SkipReferences: true,
		Progress:       progress.New(!*noProgress && progress.DefaultEnabled()),
	})
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return 1
	}
	defer func() { _ = app.Close() }()

	load := app.RefCache.Load
	if *force {
		load = app.RefCache.Rebuild
	}
	refs, err := load(ctx)
	if err != nil {
		logger.Error("Failed to prepare reference set", zap.Error(err))
		return 1
	}

	logger.Info("Reference set ready",
		zap.String("key", app.RefCache.Key()),
		zap.String("model", app.Embedder.ModelID()),
		zap.String("store", cfg.Reference.Store),
		zap.Int("words", refs.Len()),
		zap.Int("dim", refs.Dim()),
		zap.Bool("rebuilt", *force),
	)
	return 0
}
