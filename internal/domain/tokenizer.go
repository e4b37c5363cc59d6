package domain

// Tokenizer splits text into an ordered sequence of tokens.
// Implementations are configured with their dictionary at construction time.
type Tokenizer interface {
	Segment(text string) ([]string, error)
}

// WordRegistrar accepts custom dictionary words so multi-character phrases
// are kept as single tokens.
type WordRegistrar interface {
	AddWord(word string, freq float64) error
}
