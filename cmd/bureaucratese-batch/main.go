// Command bureaucratese-batch scores a dataset of articles with all three
// density metrics. Runs are resumable: SIGINT/SIGTERM saves a checkpoint, and
// the next run with the same dataset and lexicon continues from it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/bootstrap"
	"github.com/kailas-cloud/bureaucratese/internal/config"
	logpkg "github.com/kailas-cloud/bureaucratese/internal/logger"
	"github.com/kailas-cloud/bureaucratese/internal/metrics"
	"github.com/kailas-cloud/bureaucratese/internal/progress"
	"github.com/kailas-cloud/bureaucratese/internal/repository/dataset"
	batchuc "github.com/kailas-cloud/bureaucratese/internal/usecase/batch"
	"github.com/kailas-cloud/bureaucratese/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "config file (default: config/$ENV.yaml)")
		input       = flag.String("input", "", "dataset file or glob, e.g. 'data/**/*.parquet'")
		output      = flag.String("output", "", "result file (.parquet or .csv)")
		interval    = flag.Int("interval", 0, "records between checkpoints")
		reset       = flag.Bool("reset", false, "discard an existing checkpoint and start over")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address")
		noProgress  = flag.Bool("no-progress", false, "disable the progress bar")
	)
	flag.Parse()

	env := config.GetEnv()
	cfg, err := loadConfig(env, *configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 2
	}
	if *input == "" {
		*input = cfg.Batch.Input
	}
	if *metricsAddr == "" {
		*metricsAddr = cfg.Batch.MetricsAddr
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, "bureaucratese-batch")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	if *input == "" {
		logger.Error("No input dataset: pass -input or set batch.input")
		return 2
	}

	logger.Info("Starting bureaucratese batch",
		zap.String("version", version.Version),
		zap.String("input", *input),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// текущая запись дописывается после первого сигнала, второй завершает процесс
	go func() {
		<-ctx.Done()
		stop()
	}()

	// embedding и batch метрики живут в одном registry прогона
	reg := prometheus.NewRegistry()
	metrics.RegisterEmbeddingMetrics(reg)
	bar := progress.New(!*noProgress && progress.DefaultEnabled())

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{Progress: bar})
	if err != nil {
		logger.Error("Failed to initialize", zap.Error(err))
		return 1
	}
	defer func() { _ = app.Close() }()

	svc, store, err := app.Batch(*output)
	if err != nil {
		logger.Error("Failed to create batch service", zap.Error(err))
		return 1
	}
	defer func() { _ = store.Close() }()
	svc.WithProgress(bar).WithMetrics(metrics.NewBatchMetrics(reg))

	if *metricsAddr != "" {
		srv := metrics.NewServer(*metricsAddr, reg)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("Serving batch metrics", zap.String("addr", *metricsAddr))
	}

	if *reset {
		if err := store.Delete(ctx); err != nil {
			logger.Error("Failed to reset checkpoint", zap.Error(err))
			return 1
		}
		logger.Info("Checkpoint discarded")
	}

	files, err := dataset.Discover(*input)
	if err != nil {
		logger.Error("Failed to find dataset", zap.Error(err))
		return 1
	}
	table, err := dataset.Load(*input)
	if err != nil {
		logger.Error("Failed to load dataset", zap.Error(err))
		return 1
	}
	logger.Info("Dataset loaded",
		zap.Int("files", len(files)),
		zap.Int("records", table.Len()),
		zap.Strings("columns", table.Columns),
	)

	report, err := svc.Run(ctx, table, *interval)
	logReport(logger, report)
	if err != nil {
		logger.Error("Batch failed", zap.String("state", string(report.State)), zap.Error(err))
		return 1
	}

	switch report.State {
	case batchuc.StateInterrupted:
		logger.Info("Batch interrupted, rerun to resume", zap.Int("processed", report.Processed))
		return 130
	case batchuc.StateCompleted:
		for _, y := range batchuc.SummarizeByYear(report) {
			logger.Info("Year summary",
				zap.Int("year", y.Year),
				zap.Int("records", y.Records),
				zap.Float64("basic_density", y.Basic),
				zap.Float64("weighted_density", y.Weighted),
				zap.Float64("semantic_density", y.Semantic),
			)
		}
	}
	return 0
}

func loadConfig(env, path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(env)
}

func logReport(logger *zap.Logger, r batchuc.Report) {
	logger.Info("Batch finished",
		zap.String("run_id", r.RunID),
		zap.String("state", string(r.State)),
		zap.Int("processed", r.Processed),
		zap.Int("resumed", r.Resumed),
		zap.Int("scored", r.Scored),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
	)
	for _, e := range r.Errors {
		logger.Debug("Record error", zap.Int("record", e.Index()), zap.Error(e.Err()))
	}
}
