// Package segment provides Chinese word segmenters. Every segmenter receives the
// lexicon at construction so lexicon phrases are never split.
package segment

import (
	"fmt"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/lexicon"
)

// Drivers.
const (
	DriverGSE      = "gse"
	DriverMaxMatch = "maxmatch"
)

// Options configures segmenter construction.
type Options struct {
	Driver    string
	DictFiles []string
	HMM       bool
}

// New builds the segmenter selected by opts.Driver and registers the lexicon in it.
func New(lex *lexicon.Lexicon, opts Options) (domain.Tokenizer, error) {
	switch opts.Driver {
	case DriverGSE, "":
		return NewGSE(lex, opts.DictFiles, opts.HMM)
	case DriverMaxMatch:
		return NewMaxMatch(lex)
	default:
		return nil, fmt.Errorf("%w: unknown segmenter driver %q", domain.ErrTokenizerUnavailable, opts.Driver)
	}
}
