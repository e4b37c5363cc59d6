// Package refstore persists precomputed reference embedding sets.
//
// Two backends share one binary codec: a directory per cache key on local
// disk, and a Redis/Valkey hash per cache key.
package refstore

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	vectorsFile = "embeddings.bin"
	weightsFile = "weights.bin"
)

// Key derives the cache key from the official-vocabulary version and the
// embedding model identifier. A change in either invalidates the cache.
func Key(vocabularyVersion, modelID string) string {
	h := sha256.Sum256([]byte(vocabularyVersion + "\x00" + modelID))
	return hex.EncodeToString(h[:16])
}
