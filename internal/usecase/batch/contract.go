package batch

import (
	"context"

	"github.com/kailas-cloud/bureaucratese/internal/domain/analysis"
	dombatch "github.com/kailas-cloud/bureaucratese/internal/domain/batch"
	"github.com/kailas-cloud/bureaucratese/internal/domain/dataset"
)

// Scorer computes the three density metrics for one text.
type Scorer interface {
	Basic(text string) (analysis.Result, error)
	Weighted(text string) (analysis.Result, error)
	Semantic(ctx context.Context, text string) (analysis.Result, error)
}

// CheckpointStore persists run snapshots. Load returns domain.ErrNotFound
// when there is nothing to resume.
type CheckpointStore interface {
	Load(ctx context.Context) (dombatch.Checkpoint, error)
	Save(ctx context.Context, cp dombatch.Checkpoint) error
	Delete(ctx context.Context) error
}

// OutputWriter writes the final result table.
type OutputWriter interface {
	Write(path string, t *dataset.Table) error
}

// Progress receives per-batch progress.
type Progress interface {
	Start(total int, desc string)
	Add(n int)
	Finish()
}
