package segment

import (
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/bureaucratese/internal/domain/lexicon"
)

// MaxMatch is a forward maximum-matching segmenter over registered words only.
// Unregistered text falls back to single characters, with ASCII letter/digit
// runs kept together. Whitespace is dropped.
type MaxMatch struct {
	words  map[string]struct{}
	maxLen int // in runes
}

// NewMaxMatch creates a segmenter whose dictionary is the lexicon.
func NewMaxMatch(lex *lexicon.Lexicon) (*MaxMatch, error) {
	m := &MaxMatch{words: make(map[string]struct{})}
	if lex != nil {
		if err := lex.RegisterInto(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AddWord registers a word. Frequencies do not affect maximum matching.
func (m *MaxMatch) AddWord(word string, _ float64) error {
	if word == "" {
		return nil
	}
	m.words[word] = struct{}{}
	if n := utf8.RuneCountInString(word); n > m.maxLen {
		m.maxLen = n
	}
	return nil
}

// Segment splits text left to right, always taking the longest registered word.
func (m *MaxMatch) Segment(text string) ([]string, error) {
	runes := []rune(text)
	tokens := make([]string, 0, len(runes)/2+1)

	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		if n := m.longestMatch(runes, i); n > 0 {
			tokens = append(tokens, string(runes[i:i+n]))
			i += n
			continue
		}

		if isASCIIWordRune(runes[i]) {
			j := i + 1
			for j < len(runes) && isASCIIWordRune(runes[j]) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
			continue
		}

		tokens = append(tokens, string(runes[i]))
		i++
	}
	return tokens, nil
}

func (m *MaxMatch) longestMatch(runes []rune, start int) int {
	limit := m.maxLen
	if rest := len(runes) - start; rest < limit {
		limit = rest
	}
	for n := limit; n >= 1; n-- {
		if _, ok := m.words[string(runes[start:start+n])]; ok {
			return n
		}
	}
	return 0
}

func isASCIIWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
