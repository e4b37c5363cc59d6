package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSchema signals a dataset without the required text or date columns.
	ErrSchema = errors.New("dataset schema error")
	// ErrMalformedLexicon signals a lexicon source missing required columns or values.
	ErrMalformedLexicon = errors.New("malformed lexicon")
	// ErrTokenizerUnavailable signals a segmentation failure.
	ErrTokenizerUnavailable = errors.New("tokenizer unavailable")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrModelUnavailable signals that the configured embedding model could not be loaded.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrUnknownMetric signals a metric kind outside the supported set.
	ErrUnknownMetric = errors.New("unknown metric")
	// ErrCheckpointMismatch signals a checkpoint written for a different dataset or lexicon.
	ErrCheckpointMismatch = errors.New("checkpoint does not match dataset")
	// ErrEmptyReferenceSet signals a lexicon without official entries.
	ErrEmptyReferenceSet = errors.New("reference set is empty")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// RowError ties a lexicon or dataset problem to its 1-based source row.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
