package redis

import "github.com/redis/rueidis"

// NewStoreForTest wraps a pre-built client (e.g. a rueidis mock).
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
