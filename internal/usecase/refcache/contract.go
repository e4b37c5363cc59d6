package refcache

import (
	"context"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/lexicon"
	"github.com/kailas-cloud/bureaucratese/internal/domain/refset"
)

// Store persists reference sets by cache key.
type Store interface {
	Load(ctx context.Context, key string) (*refset.Set, error)
	Save(ctx context.Context, key string, set *refset.Set) error
	Delete(ctx context.Context, key string) error
}

// Vocabulary exposes the official entries and their version.
type Vocabulary interface {
	Official() []lexicon.Entry
	OfficialVersion() string
}

// Embedder vectorizes words and identifies its model.
type Embedder interface {
	domain.Embedder
	domain.ModelIdentifier
}

// Progress receives build progress.
type Progress interface {
	Start(total int, desc string)
	Add(n int)
	Finish()
}
