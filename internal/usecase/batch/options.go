package batch

import "time"

// Output column names appended to the source columns.
const (
	ColumnYear          = "year"
	ColumnBasic         = "basic_density"
	ColumnWeighted      = "weighted_density"
	ColumnSemantic      = "semantic_density"
	ColumnOfficialWords = "official_words"
)

// FloatColumns are the numeric metric columns of the output table.
var FloatColumns = []string{ColumnBasic, ColumnWeighted, ColumnSemantic}

// Defaults.
const (
	DefaultTextColumn         = "content"
	DefaultDateColumn         = "date"
	DefaultBatchSize          = 100
	DefaultCheckpointInterval = 1000
	DefaultMaxAttempts        = 3
	DefaultInitialBackoff     = 500 * time.Millisecond
	DefaultMaxBackoff         = 10 * time.Second
)

// RetryPolicy controls retries of transient embedding failures.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Options configures a batch run.
type Options struct {
	TextColumn string
	DateColumn string
	// BatchSize only affects progress granularity.
	BatchSize          int
	CheckpointInterval int
	// OutputPath is written on completion; empty skips writing.
	OutputPath string
	// LexiconVersion is mixed into the checkpoint fingerprint.
	LexiconVersion string
	// ModelID is the embedder identity, also part of the fingerprint.
	ModelID string
	Retry   RetryPolicy
}

func (o *Options) applyDefaults() {
	if o.TextColumn == "" {
		o.TextColumn = DefaultTextColumn
	}
	if o.DateColumn == "" {
		o.DateColumn = DefaultDateColumn
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.CheckpointInterval <= 0 {
		o.CheckpointInterval = DefaultCheckpointInterval
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if o.Retry.InitialBackoff < 0 {
		o.Retry.InitialBackoff = 0
	}
	if o.Retry.MaxBackoff <= 0 {
		o.Retry.MaxBackoff = DefaultMaxBackoff
	}
}
