package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/bureaucratese/internal/db"
)

// counters is the slice of the KV store the budget needs.
type counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrWithTTL(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error)
}

// TTLs keeps each window's counter a little past the window itself.
type TTLs struct {
	Daily   time.Duration
	Monthly time.Duration
}

// Store persists embedding token counters. Keys look like
// bureaucratese:budget:<provider>:<daily|monthly>:<period>.
type Store struct {
	kv   counters
	ttls map[string]time.Duration
}

// New creates a budget store.
func New(kv counters, ttls TTLs) *Store {
	return &Store{
		kv: kv,
		ttls: map[string]time.Duration{
			"daily":   ttls.Daily,
			"monthly": ttls.Monthly,
		},
	}
}

// IncrBy adds tokens to the window counter named by key.
func (s *Store) IncrBy(ctx context.Context, key string, tokens int64) error {
	ttl, err := s.ttlFor(key)
	if err != nil {
		return err
	}
	if _, err := s.kv.IncrWithTTL(ctx, key, tokens, ttl); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	return nil
}

// Get returns the counter at key; a missing counter is zero.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.kv.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	used, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget counter %s: %w", key, err)
	}
	return used, nil
}

// ttlFor reads the window name, the segment before the period.
func (s *Store) ttlFor(key string) (time.Duration, error) {
	parts := strings.Split(key, ":")
	if len(parts) >= 2 {
		if ttl, ok := s.ttls[parts[len(parts)-2]]; ok {
			return ttl, nil
		}
	}
	return 0, fmt.Errorf("budget key %q: unknown window", key)
}
