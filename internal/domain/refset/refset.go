package refset

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
)

// weightTolerance bounds float drift when restoring persisted weights.
const weightTolerance = 1e-6

// Set is the precomputed reference embedding set of the official vocabulary.
// Weights sum to 1. Read-only after construction.
type Set struct {
	vectors [][]float32
	weights []float64
	dim     int
}

// New validates vectors and raw weights, normalizing the weights once.
func New(vectors [][]float32, rawWeights []float64) (*Set, error) {
	if err := validate(vectors, rawWeights); err != nil {
		return nil, err
	}

	var sum float64
	for i, w := range rawWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("weight [%d] = %v: must be non-negative", i, w)
		}
		sum += w
	}
	if sum <= 0 {
		return nil, fmt.Errorf("weights sum to %v: must be positive", sum)
	}

	weights := make([]float64, len(rawWeights))
	for i, w := range rawWeights {
		weights[i] = w / sum
	}
	return &Set{vectors: vectors, weights: weights, dim: len(vectors[0])}, nil
}

// FromNormalized restores a persisted set whose weights are already normalized.
func FromNormalized(vectors [][]float32, weights []float64) (*Set, error) {
	if err := validate(vectors, weights); err != nil {
		return nil, err
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return nil, fmt.Errorf("persisted weights sum to %v, expected 1", sum)
	}
	return &Set{vectors: vectors, weights: weights, dim: len(vectors[0])}, nil
}

func validate(vectors [][]float32, weights []float64) error {
	if len(vectors) == 0 {
		return domain.ErrEmptyReferenceSet
	}
	if len(vectors) != len(weights) {
		return fmt.Errorf("vectors (%d) and weights (%d) length mismatch", len(vectors), len(weights))
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("reference vector [0] is empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("reference vector [%d] has dimension %d, expected %d", i, len(v), dim)
		}
	}
	return nil
}

// Len returns the number of reference vectors.
func (s *Set) Len() int { return len(s.vectors) }

// Dim returns the shared vector dimension.
func (s *Set) Dim() int { return s.dim }

// Vector returns the i-th reference vector. Callers must not modify it.
func (s *Set) Vector(i int) []float32 { return s.vectors[i] }

// Weight returns the normalized weight of the i-th vector.
func (s *Set) Weight(i int) float64 { return s.weights[i] }

// Vectors returns all vectors. Callers must not modify them.
func (s *Set) Vectors() [][]float32 { return s.vectors }

// Weights returns a copy of the normalized weights.
func (s *Set) Weights() []float64 {
	out := make([]float64, len(s.weights))
	copy(out, s.weights)
	return out
}
