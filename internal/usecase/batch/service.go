// Package batch runs resumable density scoring over a tabular dataset.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	dombatch "github.com/kailas-cloud/bureaucratese/internal/domain/batch"
	"github.com/kailas-cloud/bureaucratese/internal/domain/dataset"
	"github.com/kailas-cloud/bureaucratese/internal/metrics"
)

// State is the lifecycle state of a run.
type State string

// Run states.
const (
	StateIdle          State = "idle"
	StateRunning       State = "running"
	StateCheckpointing State = "checkpointing"
	StateInterrupted   State = "interrupted"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// Report describes the outcome of Run.
type Report struct {
	RunID string
	State State
	// Table is the source table plus year and metric columns. Records not yet
	// processed carry default metric values.
	Table     *dataset.Table
	Scores    []dombatch.Scores
	Processed int
	Resumed   int
	Scored    int
	Skipped   int
	Failed    int
	// Errors lists per-record failures of this run (resumed records excluded).
	Errors []dombatch.Result

	years []year
}

type year struct {
	value int
	ok    bool
}

// Service orchestrates batch scoring with checkpoints.
type Service struct {
	scorer   Scorer
	store    CheckpointStore
	output   OutputWriter
	progress Progress
	metrics  *metrics.BatchMetrics
	opts     Options
	logger   *zap.Logger

	mu    sync.Mutex
	state State
}

// New creates an orchestrator.
func New(scorer Scorer, store CheckpointStore, output OutputWriter, opts Options, logger *zap.Logger) *Service {
	opts.applyDefaults()
	return &Service{
		scorer: scorer,
		store:  store,
		output: output,
		opts:   opts,
		logger: logger,
		state:  StateIdle,
	}
}

// WithProgress attaches a progress reporter.
func (s *Service) WithProgress(p Progress) *Service {
	s.progress = p
	return s
}

// WithMetrics attaches batch metrics.
func (s *Service) WithMetrics(m *metrics.BatchMetrics) *Service {
	s.metrics = m
	return s
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.logger.Debug("Batch state", zap.String("from", string(prev)), zap.String("to", string(st)))
	}
}

// run holds the mutable state of one Run call.
type run struct {
	id              string
	table           *dataset.Table
	textIdx         int
	fingerprint     string
	scores          []dombatch.Scores
	years           []year
	processed       int
	resumed         int
	sinceCheckpoint int
	errors          []dombatch.Result
}

// Run scores every record of table, resuming from a checkpoint when one
// matches. checkpointInterval <= 0 uses the configured interval.
//
// Cancelling ctx interrupts the run at the next record boundary: a
// checkpoint is saved and the partial report is returned with a nil error.
func (s *Service) Run(ctx context.Context, table *dataset.Table, checkpointInterval int) (Report, error) {
	s.setState(StateRunning)
	if checkpointInterval <= 0 {
		checkpointInterval = s.opts.CheckpointInterval
	}

	r, err := s.prepare(ctx, table)
	if err != nil {
		s.setState(StateFailed)
		return Report{State: StateFailed}, err
	}

	total := table.Len()
	if s.metrics != nil {
		s.metrics.DatasetSize.Set(float64(total))
		s.metrics.Position.Set(float64(r.processed))
	}
	s.logger.Info("Batch run started",
		zap.String("run_id", r.id),
		zap.Int("records", total),
		zap.Int("resume_from", r.processed),
		zap.Int("checkpoint_interval", checkpointInterval),
	)

	if s.progress != nil {
		s.progress.Start(total, "scoring")
		s.progress.Add(r.processed)
		defer s.progress.Finish()
	}

	for start := r.processed; start < total; start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, total)

		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				return s.interrupt(ctx, r)
			}
			if !s.processRecord(ctx, r, i) {
				return s.interrupt(ctx, r)
			}

			if r.sinceCheckpoint >= checkpointInterval {
				s.checkpoint(ctx, r)
			}
		}

		if s.progress != nil {
			s.progress.Add(end - start)
		}
		s.logger.Debug("Batch processed",
			zap.String("run_id", r.id),
			zap.Int("from", start),
			zap.Int("to", end),
		)
	}

	return s.complete(ctx, r)
}

// prepare validates the schema, derives years and restores the checkpoint.
func (s *Service) prepare(ctx context.Context, table *dataset.Table) (*run, error) {
	textIdx := table.ColumnIndex(s.opts.TextColumn)
	dateIdx := table.ColumnIndex(s.opts.DateColumn)
	var missing []string
	if textIdx < 0 {
		missing = append(missing, s.opts.TextColumn)
	}
	if dateIdx < 0 {
		missing = append(missing, s.opts.DateColumn)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", domain.ErrSchema, strings.Join(missing, ", "))
	}

	years := make([]year, table.Len())
	for i, row := range table.Rows {
		cell := row[dateIdx]
		if cell.Null || strings.TrimSpace(cell.Value) == "" {
			continue
		}
		ts, err := dataset.ParseDate(cell.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrSchema, &domain.RowError{Row: i + 1, Err: err})
		}
		years[i] = year{value: ts.Year(), ok: true}
	}

	r := &run{
		table:       table,
		textIdx:     textIdx,
		fingerprint: s.fingerprint(table),
		scores:      make([]dombatch.Scores, table.Len()),
		years:       years,
	}

	cp, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.id = uuid.NewString()
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.Fingerprint != r.fingerprint {
		return nil, fmt.Errorf("%w: checkpoint fingerprint %s, dataset %s",
			domain.ErrCheckpointMismatch, cp.Fingerprint, r.fingerprint)
	}
	if err := cp.Validate(table.Len()); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCheckpointMismatch, err)
	}

	copy(r.scores, cp.Scores)
	r.id = cp.RunID
	r.processed = cp.ProcessedCount
	r.resumed = cp.ProcessedCount
	s.logger.Info("Resuming from checkpoint",
		zap.String("run_id", r.id),
		zap.Int("processed", cp.ProcessedCount),
		zap.Time("checkpoint_at", cp.UpdatedAt),
	)
	return r, nil
}

func (s *Service) fingerprint(table *dataset.Table) string {
	return table.Fingerprint() + ":" + s.opts.LexiconVersion + ":" + s.opts.ModelID
}

// processRecord scores record i. Failures and panics leave the record at
// defaults. The record runs to completion even if ctx is cancelled meanwhile;
// a failure seen after cancellation leaves it unprocessed and reports false.
func (s *Service) processRecord(ctx context.Context, r *run, i int) bool {
	start := time.Now()
	sc, res := s.scoreRecord(context.WithoutCancel(ctx), i, r.table.Rows[i][r.textIdx])
	if res.Status() == dombatch.StatusError && ctx.Err() != nil {
		s.logger.Info("Record left for resume after interrupt", zap.Int("record", i), zap.Error(res.Err()))
		return false
	}
	r.scores[i] = sc
	r.processed = i + 1
	r.sinceCheckpoint++

	if res.Status() == dombatch.StatusError {
		r.errors = append(r.errors, res)
	}
	if s.metrics != nil {
		s.metrics.RecordsTotal.WithLabelValues(string(res.Status())).Inc()
		s.metrics.RecordDuration.Observe(time.Since(start).Seconds())
		s.metrics.Position.Set(float64(r.processed))
	}
	return true
}

func (s *Service) scoreRecord(ctx context.Context, i int, cell dataset.Cell) (sc dombatch.Scores, res dombatch.Result) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			s.logger.Error("Record scoring panicked", zap.Int("record", i), zap.Error(err))
			sc = dombatch.Scores{Status: dombatch.StatusError}
			res = dombatch.NewError(i, err)
		}
	}()

	if cell.Null {
		s.logger.Info("Skipping record without text", zap.Int("record", i))
		return dombatch.Scores{Status: dombatch.StatusSkipped}, dombatch.NewSkipped(i)
	}

	basic, err := s.scorer.Basic(cell.Value)
	if err != nil {
		return s.recordFailed(i, "basic", err)
	}
	weighted, err := s.scorer.Weighted(cell.Value)
	if err != nil {
		return s.recordFailed(i, "weighted", err)
	}
	semantic, err := s.semanticWithRetry(ctx, i, cell.Value)
	if err != nil {
		return s.recordFailed(i, "semantic", err)
	}

	return dombatch.Scores{
		Basic:         basic.Density,
		Weighted:      weighted.Density,
		Semantic:      semantic.Density,
		OfficialWords: basic.MatchedWords,
		Status:        dombatch.StatusOK,
	}, dombatch.NewOK(i)
}

func (s *Service) recordFailed(i int, metricName string, err error) (dombatch.Scores, dombatch.Result) {
	s.logger.Warn("Record scoring failed",
		zap.Int("record", i),
		zap.String("metric", metricName),
		zap.Error(err),
	)
	return dombatch.Scores{Status: dombatch.StatusError}, dombatch.NewError(i, fmt.Errorf("%s: %w", metricName, err))
}

// checkpoint persists progress. A failed save is logged and the run goes on;
// the next interval retries.
func (s *Service) checkpoint(ctx context.Context, r *run) {
	s.setState(StateCheckpointing)
	defer s.setState(StateRunning)

	if err := s.saveCheckpoint(ctx, r); err != nil {
		s.logger.Error("Checkpoint failed", zap.String("run_id", r.id), zap.Error(err))
		return
	}
	r.sinceCheckpoint = 0
}

func (s *Service) saveCheckpoint(ctx context.Context, r *run) error {
	cp := dombatch.NewCheckpoint(r.id, r.fingerprint, r.scores, r.processed)
	if err := s.store.Save(ctx, cp); err != nil {
		s.countCheckpoint("error")
		return fmt.Errorf("save checkpoint: %w", err)
	}
	s.countCheckpoint("ok")
	s.logger.Info("Checkpoint saved",
		zap.String("run_id", r.id),
		zap.Int("processed", r.processed),
		zap.Int("total", r.table.Len()),
	)
	return nil
}

func (s *Service) countCheckpoint(status string) {
	if s.metrics != nil {
		s.metrics.Checkpoints.WithLabelValues(status).Inc()
	}
}

// interrupt saves a checkpoint after cancellation and returns the partial report.
func (s *Service) interrupt(ctx context.Context, r *run) (Report, error) {
	s.setState(StateCheckpointing)
	// ctx уже отменён: сохраняем без отмены
	if err := s.saveCheckpoint(context.WithoutCancel(ctx), r); err != nil {
		s.setState(StateFailed)
		return s.report(r, StateFailed), fmt.Errorf("interrupted: %w", err)
	}
	s.logger.Warn("Batch run interrupted",
		zap.String("run_id", r.id),
		zap.Int("processed", r.processed),
		zap.Int("total", r.table.Len()),
	)
	s.setState(StateInterrupted)
	return s.report(r, StateInterrupted), nil
}

// complete writes the output, then removes the checkpoint. A failed write
// keeps the run resumable.
func (s *Service) complete(ctx context.Context, r *run) (Report, error) {
	rep := s.report(r, StateCompleted)

	if s.opts.OutputPath != "" && s.output != nil {
		if err := s.output.Write(s.opts.OutputPath, rep.Table); err != nil {
			if cpErr := s.saveCheckpoint(context.WithoutCancel(ctx), r); cpErr != nil {
				s.logger.Error("Checkpoint after failed output write failed", zap.Error(cpErr))
			}
			s.setState(StateFailed)
			rep.State = StateFailed
			return rep, fmt.Errorf("write output %s: %w", s.opts.OutputPath, err)
		}
		s.logger.Info("Results written", zap.String("path", s.opts.OutputPath))
	}

	if err := s.store.Delete(ctx); err != nil {
		s.logger.Warn("Failed to delete checkpoint", zap.Error(err))
	}

	s.logger.Info("Batch run completed",
		zap.String("run_id", r.id),
		zap.Int("records", r.table.Len()),
		zap.Int("scored", rep.Scored),
		zap.Int("skipped", rep.Skipped),
		zap.Int("failed", rep.Failed),
	)
	s.setState(StateCompleted)
	return rep, nil
}

func (s *Service) report(r *run, st State) Report {
	rep := Report{
		RunID:     r.id,
		State:     st,
		Table:     buildOutput(r.table, r.years, r.scores),
		Scores:    r.scores,
		Processed: r.processed,
		Resumed:   r.resumed,
		Errors:    r.errors,
		years:     r.years,
	}
	for _, sc := range r.scores[:r.processed] {
		switch sc.Status {
		case dombatch.StatusOK:
			rep.Scored++
		case dombatch.StatusSkipped:
			rep.Skipped++
		case dombatch.StatusError:
			rep.Failed++
		}
	}
	return rep
}

// buildOutput appends year and metric columns, replacing same-named source columns.
func buildOutput(src *dataset.Table, years []year, scores []dombatch.Scores) *dataset.Table {
	extra := []string{ColumnYear, ColumnBasic, ColumnWeighted, ColumnSemantic, ColumnOfficialWords}

	var keep []int
	cols := make([]string, 0, len(src.Columns)+len(extra))
	for i, c := range src.Columns {
		if isOutputColumn(c, extra) {
			continue
		}
		keep = append(keep, i)
		cols = append(cols, c)
	}
	cols = append(cols, extra...)

	out := &dataset.Table{Columns: cols, Rows: make([][]dataset.Cell, len(src.Rows))}
	for i, row := range src.Rows {
		cells := make([]dataset.Cell, 0, len(cols))
		for _, k := range keep {
			cells = append(cells, row[k])
		}

		y := dataset.NullCell
		if years[i].ok {
			y = dataset.StringCell(strconv.Itoa(years[i].value))
		}
		sc := scores[i]
		cells = append(cells,
			y,
			dataset.StringCell(formatFloat(sc.Basic)),
			dataset.StringCell(formatFloat(sc.Weighted)),
			dataset.StringCell(formatFloat(sc.Semantic)),
			dataset.StringCell(strings.Join(sc.OfficialWords, ", ")),
		)
		out.Rows[i] = cells
	}
	return out
}

func isOutputColumn(c string, extra []string) bool {
	for _, e := range extra {
		if c == e {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
