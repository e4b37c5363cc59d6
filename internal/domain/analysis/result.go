package analysis

import "github.com/kailas-cloud/bureaucratese/internal/domain/metric"

// Result is the outcome of scoring one text with one metric.
// Lexical metrics fill MatchedWords/TotalTokens/MatchedCount;
// the semantic metric fills WeightedSimilarity instead.
type Result struct {
	Kind               metric.Kind
	Density            float64
	MatchedWords       []string
	TotalTokens        int
	MatchedCount       int
	WeightedSimilarity float64
}

// Zero is the result for empty or whitespace-only input.
func Zero(kind metric.Kind) Result {
	return Result{Kind: kind, MatchedWords: []string{}}
}

// Lexical builds a basic/weighted result. MatchedCount is len(matched).
func Lexical(kind metric.Kind, density float64, matched []string, totalTokens int) Result {
	if matched == nil {
		matched = []string{}
	}
	return Result{
		Kind:         kind,
		Density:      density,
		MatchedWords: matched,
		TotalTokens:  totalTokens,
		MatchedCount: len(matched),
	}
}

// SemanticResult builds a semantic result from the weighted cosine similarity.
// Density maps [-1, 1] onto [0, 1].
func SemanticResult(weightedSimilarity float64) Result {
	return Result{
		Kind:               metric.Semantic,
		Density:            (weightedSimilarity + 1) / 2,
		MatchedWords:       []string{},
		WeightedSimilarity: weightedSimilarity,
	}
}
