package refstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/bureaucratese/internal/db"
	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/refset"
)

const (
	fieldVectors = "vectors"
	fieldWeights = "weights"
	fieldCount   = "count"
	fieldDim     = "dim"
)

// hashStore is the consumer interface for hash operations (ISP).
type hashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// KVStore keeps each reference set in one Redis/Valkey hash.
type KVStore struct {
	store hashStore
}

// NewKVStore creates a hash-backed store.
func NewKVStore(s hashStore) *KVStore {
	return &KVStore{store: s}
}

// Load reads the set stored under key. Missing sets yield domain.ErrNotFound.
func (s *KVStore) Load(ctx context.Context, key string) (*refset.Set, error) {
	fields, err := s.store.HGetAll(ctx, redisKey(key))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("reference set %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load reference set: %w", err)
	}

	rawVectors, ok := fields[fieldVectors]
	if !ok {
		return nil, fmt.Errorf("reference set %s: missing %s field", key, fieldVectors)
	}
	rawWeights, ok := fields[fieldWeights]
	if !ok {
		return nil, fmt.Errorf("reference set %s: missing %s field", key, fieldWeights)
	}
	return decodeSet([]byte(rawVectors), []byte(rawWeights))
}

// Save replaces the hash in one HSET; count and dim are kept for inspection.
func (s *KVStore) Save(ctx context.Context, key string, set *refset.Set) error {
	fields := map[string]string{
		fieldVectors: string(encodeVectors(set.Vectors())),
		fieldWeights: string(encodeWeights(set.Weights())),
		fieldCount:   strconv.Itoa(set.Len()),
		fieldDim:     strconv.Itoa(set.Dim()),
	}
	if err := s.store.HSet(ctx, redisKey(key), fields); err != nil {
		return fmt.Errorf("save reference set: %w", err)
	}
	return nil
}

// Delete removes the set stored under key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.store.Del(ctx, redisKey(key)); err != nil {
		return fmt.Errorf("delete reference set: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return domain.KeyPrefix + "refset:" + key
}
