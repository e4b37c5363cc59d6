// Package refcache loads or builds the reference embedding set of the
// official vocabulary.
package refcache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/refset"
	"github.com/kailas-cloud/bureaucratese/internal/metrics"
	"github.com/kailas-cloud/bureaucratese/internal/repository/refstore"
)

// DefaultChunkSize is the number of words embedded per request when the
// embedder supports batching.
const DefaultChunkSize = 64

// Service produces the reference set, reusing a persisted one when the
// vocabulary and model are unchanged.
type Service struct {
	vocab     Vocabulary
	embed     Embedder
	store     Store
	progress  Progress
	chunkSize int
	logger    *zap.Logger
}

// New creates a reference cache service. store may be nil (always build).
func New(vocab Vocabulary, embed Embedder, store Store, logger *zap.Logger) *Service {
	return &Service{
		vocab:     vocab,
		embed:     embed,
		store:     store,
		chunkSize: DefaultChunkSize,
		logger:    logger,
	}
}

// WithProgress attaches a progress reporter for builds.
func (s *Service) WithProgress(p Progress) *Service {
	s.progress = p
	return s
}

// Key returns the cache key for the current vocabulary and model.
func (s *Service) Key() string {
	return refstore.Key(s.vocab.OfficialVersion(), s.embed.ModelID())
}

// Load returns the persisted set for the current key or builds and persists it.
func (s *Service) Load(ctx context.Context) (*refset.Set, error) {
	key := s.Key()

	if s.store != nil {
		set, err := s.store.Load(ctx, key)
		switch {
		case err == nil:
			metrics.ReferenceCacheTotal.WithLabelValues("hit").Inc()
			s.logger.Info("Reference set loaded from cache",
				zap.String("key", key),
				zap.Int("vectors", set.Len()),
				zap.Int("dim", set.Dim()),
			)
			return set, nil
		case errors.Is(err, domain.ErrNotFound):
			metrics.ReferenceCacheTotal.WithLabelValues("miss").Inc()
		default:
			metrics.ReferenceCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("Reference cache unreadable, rebuilding", zap.String("key", key), zap.Error(err))
		}
	}

	return s.build(ctx, key)
}

// Rebuild ignores any persisted set, builds a fresh one and persists it.
func (s *Service) Rebuild(ctx context.Context) (*refset.Set, error) {
	key := s.Key()
	if s.store != nil {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to drop reference cache", zap.String("key", key), zap.Error(err))
		}
	}
	return s.build(ctx, key)
}

func (s *Service) build(ctx context.Context, key string) (*refset.Set, error) {
	entries := s.vocab.Official()
	if len(entries) == 0 {
		return nil, domain.ErrEmptyReferenceSet
	}

	words := make([]string, len(entries))
	weights := make([]float64, len(entries))
	for i, e := range entries {
		words[i] = e.Word
		weights[i] = e.Frequency
	}

	s.logger.Info("Building reference set",
		zap.String("key", key),
		zap.String("model", s.embed.ModelID()),
		zap.Int("words", len(words)),
	)

	vectors, err := s.embedWords(ctx, words)
	if err != nil {
		return nil, err
	}

	set, err := refset.New(vectors, weights)
	if err != nil {
		return nil, fmt.Errorf("build reference set: %w", err)
	}
	metrics.ReferenceCacheTotal.WithLabelValues("built").Inc()

	if s.store != nil {
		// сохранение best-effort: набор уже пригоден для скоринга
		if err := s.store.Save(ctx, key, set); err != nil {
			s.logger.Warn("Failed to persist reference set", zap.String("key", key), zap.Error(err))
		}
	}
	return set, nil
}

func (s *Service) embedWords(ctx context.Context, words []string) ([][]float32, error) {
	if s.progress != nil {
		s.progress.Start(len(words), "reference embeddings")
		defer s.progress.Finish()
	}

	be, batched := s.embed.(domain.BatchEmbedder)
	vectors := make([][]float32, 0, len(words))

	for offset := 0; offset < len(words); offset += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reference build: %w", err)
		}
		end := min(offset+s.chunkSize, len(words))
		chunk := words[offset:end]

		var (
			res domain.BatchEmbeddingResult
			err error
		)
		if batched {
			res, err = be.BatchEmbed(ctx, chunk)
		} else {
			res, err = domain.BatchFallback(ctx, s.embed, chunk)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: embed reference words %d-%d: %w",
				domain.ErrEmbeddingUnavailable, offset, end, err)
		}
		if len(res.Embeddings) != len(chunk) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d words",
				domain.ErrEmbeddingUnavailable, len(res.Embeddings), len(chunk))
		}

		vectors = append(vectors, res.Embeddings...)
		if s.progress != nil {
			s.progress.Add(len(chunk))
		}
	}
	return vectors, nil
}
