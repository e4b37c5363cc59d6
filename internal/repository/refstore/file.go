package refstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/refset"
)

// FileStore keeps each reference set in <dir>/<key>/{embeddings,weights}.bin.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Load reads the set stored under key. Missing sets yield domain.ErrNotFound.
func (s *FileStore) Load(_ context.Context, key string) (*refset.Set, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}

	rawVectors, err := os.ReadFile(filepath.Join(target, vectorsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reference set %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	rawWeights, err := os.ReadFile(filepath.Join(target, weightsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reference set %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read weights: %w", err)
	}

	return decodeSet(rawVectors, rawWeights)
}

// Save writes both files into a temp directory and renames it into place,
// so readers never see a half-written set.
func (s *FileStore) Save(_ context.Context, key string, set *refset.Set) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create reference dir: %w", err)
	}

	tmp, err := os.MkdirTemp(s.dir, "."+key+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck // no-op after successful rename

	if err := os.WriteFile(filepath.Join(tmp, vectorsFile), encodeVectors(set.Vectors()), 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, weightsFile), encodeWeights(set.Weights()), 0o644); err != nil {
		return fmt.Errorf("write weights: %w", err)
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove previous set: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename reference set: %w", err)
	}
	return nil
}

// Delete removes the set stored under key. Deleting a missing set is a no-op.
func (s *FileStore) Delete(_ context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("delete reference set: %w", err)
	}
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: invalid reference key %q", domain.ErrInvalidInput, key)
	}
	return filepath.Join(s.dir, key), nil
}

func decodeSet(rawVectors, rawWeights []byte) (*refset.Set, error) {
	vectors, err := decodeVectors(rawVectors)
	if err != nil {
		return nil, err
	}
	weights, err := decodeWeights(rawWeights)
	if err != nil {
		return nil, err
	}
	set, err := refset.FromNormalized(vectors, weights)
	if err != nil {
		return nil, fmt.Errorf("restore reference set: %w", err)
	}
	return set, nil
}
