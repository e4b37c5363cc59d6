package lexicon

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
)

// Column names of the lexicon table.
const (
	ColumnWord      = "Word"
	ColumnType      = "typeOfWord"
	ColumnFrequency = "Frequency"
)

// ReadCSV parses a lexicon table with a header row.
func ReadCSV(r io.Reader) (*Lexicon, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", domain.ErrMalformedLexicon)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrMalformedLexicon, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}
	var missing []string
	for _, name := range []string{ColumnWord, ColumnType, ColumnFrequency} {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", domain.ErrMalformedLexicon, strings.Join(missing, ", "))
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedLexicon, err)
		}
		rows = append(rows, Row{
			Word:       field(rec, cols[ColumnWord]),
			TypeOfWord: field(rec, cols[ColumnType]),
			Frequency:  field(rec, cols[ColumnFrequency]),
		})
	}

	return Build(rows)
}

// LoadFile reads a lexicon CSV from disk.
func LoadFile(path string) (*Lexicon, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open lexicon: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	lex, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", path, err)
	}
	return lex, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
