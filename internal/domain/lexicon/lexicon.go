package lexicon

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
)

// DiscourseType classifies a lexicon word.
type DiscourseType string

// Discourse types.
const (
	Official DiscourseType = "official"
	Other    DiscourseType = "other"
)

// Source values of the typeOfWord column that select Official.
const (
	officialLabelZH = "官方话语"
	officialLabelEN = "official discourse"
)

// ParseDiscourseType maps a raw typeOfWord value to a DiscourseType.
// Anything but the official label is Other.
func ParseDiscourseType(raw string) DiscourseType {
	s := strings.TrimSpace(raw)
	if s == officialLabelZH || strings.EqualFold(s, officialLabelEN) {
		return Official
	}
	return Other
}

// Entry is a single lexicon word.
type Entry struct {
	Word      string
	Type      DiscourseType
	Frequency float64
}

// Row is one raw source record before validation.
type Row struct {
	Word       string
	TypeOfWord string
	Frequency  string
}

// Lexicon is the immutable word -> (type, frequency) mapping.
type Lexicon struct {
	entries []Entry
	index   map[string]int
	version string
}

// Build validates rows and creates a Lexicon.
// Rows are 1-based in errors. For duplicate words the last row wins, keeping the
// position of the first occurrence.
func Build(rows []Row) (*Lexicon, error) {
	l := &Lexicon{index: make(map[string]int, len(rows))}

	for i, r := range rows {
		word := strings.TrimSpace(r.Word)
		if word == "" {
			return nil, &domain.RowError{Row: i + 1, Err: fmt.Errorf("%w: empty word", domain.ErrMalformedLexicon)}
		}
		freq, err := parseFrequency(r.Frequency)
		if err != nil {
			return nil, &domain.RowError{Row: i + 1, Err: err}
		}

		e := Entry{Word: word, Type: ParseDiscourseType(r.TypeOfWord), Frequency: freq}
		if pos, ok := l.index[word]; ok {
			l.entries[pos] = e
			continue
		}
		l.index[word] = len(l.entries)
		l.entries = append(l.entries, e)
	}

	l.version = l.hash()
	return l, nil
}

func parseFrequency(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty frequency", domain.ErrMalformedLexicon)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q is not a number", domain.ErrMalformedLexicon, raw)
	}
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: frequency %q must be positive", domain.ErrMalformedLexicon, raw)
	}
	return f, nil
}

// IsOfficial reports whether word is an Official entry.
func (l *Lexicon) IsOfficial(word string) bool {
	pos, ok := l.index[word]
	return ok && l.entries[pos].Type == Official
}

// FrequencyOf returns the stored frequency, or 1 for unknown words.
func (l *Lexicon) FrequencyOf(word string) float64 {
	if pos, ok := l.index[word]; ok {
		return l.entries[pos].Frequency
	}
	return 1
}

// Lookup returns the entry for word.
func (l *Lexicon) Lookup(word string) (Entry, bool) {
	pos, ok := l.index[word]
	if !ok {
		return Entry{}, false
	}
	return l.entries[pos], true
}

// Len returns the number of distinct words.
func (l *Lexicon) Len() int { return len(l.entries) }

// Entries returns a copy of all entries in source order.
func (l *Lexicon) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Official returns Official entries in source order.
func (l *Lexicon) Official() []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Type == Official {
			out = append(out, e)
		}
	}
	return out
}

// Version is a content hash of all entries. Equal lexicons have equal versions.
func (l *Lexicon) Version() string { return l.version }

// OfficialVersion hashes only Official words and frequencies, the inputs of the
// reference embedding set.
func (l *Lexicon) OfficialVersion() string {
	return hashEntries(l.Official())
}

// RegisterInto hands every word and its frequency to a tokenizer dictionary.
func (l *Lexicon) RegisterInto(r domain.WordRegistrar) error {
	for _, e := range l.entries {
		if err := r.AddWord(e.Word, e.Frequency); err != nil {
			return fmt.Errorf("register %q: %w", e.Word, err)
		}
	}
	return nil
}

func (l *Lexicon) hash() string { return hashEntries(l.entries) }

func hashEntries(entries []Entry) string {
	h := sha256.New()
	var buf [8]byte
	for _, e := range entries {
		h.Write([]byte(e.Word))
		h.Write([]byte{0})
		h.Write([]byte(e.Type))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(e.Frequency))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
