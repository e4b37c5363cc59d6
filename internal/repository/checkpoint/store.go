// Package checkpoint persists resumable batch-run snapshots.
//
// Both backends replace the snapshot atomically: a reader sees either the
// previous checkpoint or the new one, never a mix.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/bureaucratese/internal/domain/batch"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Store is the checkpoint persistence contract.
// Load returns domain.ErrNotFound when no checkpoint exists.
type Store interface {
	Load(ctx context.Context) (batch.Checkpoint, error)
	Save(ctx context.Context, cp batch.Checkpoint) error
	Delete(ctx context.Context) error
	Close() error
}

// Open creates a store for the given driver and path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverFile:
		return NewFileStore(path), nil
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", driver)
	}
}
