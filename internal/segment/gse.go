package segment

import (
	"fmt"

	"github.com/go-ego/gse"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/lexicon"
)

// GSE segments with the gse dictionary segmenter plus lexicon words.
type GSE struct {
	seg gse.Segmenter
	hmm bool
}

// NewGSE loads dictFiles (the embedded dictionary when empty) and registers
// every lexicon word with its frequency.
func NewGSE(lex *lexicon.Lexicon, dictFiles []string, hmm bool) (*GSE, error) {
	g := &GSE{hmm: hmm}
	g.seg.SkipLog = true

	var err error
	if len(dictFiles) > 0 {
		err = g.seg.LoadDict(dictFiles...)
	} else {
		err = g.seg.LoadDictEmbed()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load dictionary: %w", domain.ErrTokenizerUnavailable, err)
	}

	if lex != nil {
		if err := lex.RegisterInto(g); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrTokenizerUnavailable, err)
		}
	}
	return g, nil
}

// AddWord registers a custom dictionary word.
func (g *GSE) AddWord(word string, freq float64) error {
	if err := g.seg.AddToken(word, freq); err != nil {
		return fmt.Errorf("add token: %w", err)
	}
	return nil
}

// Segment cuts text in accurate mode.
func (g *GSE) Segment(text string) ([]string, error) {
	return g.seg.Cut(text, g.hmm), nil
}
