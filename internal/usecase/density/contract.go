package density

import (
	"context"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
)

// Lexicon answers membership and frequency queries.
type Lexicon interface {
	IsOfficial(word string) bool
	FrequencyOf(word string) float64
}

// Tokenizer segments text into tokens.
type Tokenizer interface {
	Segment(text string) ([]string, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ReferenceSet is the weighted official vocabulary in embedding space.
type ReferenceSet interface {
	Len() int
	Dim() int
	Vector(i int) []float32
	Weight(i int) float64
}
