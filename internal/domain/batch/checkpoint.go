package batch

import (
	"fmt"
	"time"
)

// CheckpointVersion is the on-disk format version.
const CheckpointVersion = 1

// Checkpoint is a resumable snapshot of a batch run. Scores[i] belongs to dataset
// record i and len(Scores) == ProcessedCount.
type Checkpoint struct {
	Version        int       `json:"version"`
	RunID          string    `json:"run_id"`
	Fingerprint    string    `json:"fingerprint"`
	ProcessedCount int       `json:"processed_count"`
	Scores         []Scores  `json:"scores"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCheckpoint snapshots the first processed scores.
func NewCheckpoint(runID, fingerprint string, scores []Scores, processed int) Checkpoint {
	snap := make([]Scores, processed)
	copy(snap, scores[:processed])
	return Checkpoint{
		Version:        CheckpointVersion,
		RunID:          runID,
		Fingerprint:    fingerprint,
		ProcessedCount: processed,
		Scores:         snap,
		UpdatedAt:      time.Now().UTC(),
	}
}

// Validate checks internal consistency of a loaded checkpoint against the
// dataset size.
func (c Checkpoint) Validate(datasetLen int) error {
	if c.Version != CheckpointVersion {
		return fmt.Errorf("unsupported checkpoint version %d", c.Version)
	}
	if c.ProcessedCount < 0 || c.ProcessedCount > datasetLen {
		return fmt.Errorf("processed count %d outside dataset of %d records", c.ProcessedCount, datasetLen)
	}
	if len(c.Scores) != c.ProcessedCount {
		return fmt.Errorf("checkpoint holds %d scores for %d processed records", len(c.Scores), c.ProcessedCount)
	}
	return nil
}
