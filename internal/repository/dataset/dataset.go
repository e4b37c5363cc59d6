// Package dataset reads input tables from Parquet or CSV files and writes
// scored result tables back out.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	dom "github.com/kailas-cloud/bureaucratese/internal/domain/dataset"
)

// Supported file formats, chosen by extension.
const (
	FormatParquet = ".parquet"
	FormatCSV     = ".csv"
)

// Discover expands a doublestar pattern (e.g. "archive/**/*.parquet") into a
// sorted list of files. A plain path that exists is returned as is.
func Discover(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(files)
	return files, nil
}

// Load discovers files and concatenates them in order. All files must share
// the same columns.
func Load(pattern string) (*dom.Table, error) {
	files, err := Discover(pattern)
	if err != nil {
		return nil, err
	}

	table := &dom.Table{}
	for _, f := range files {
		part, err := ReadFile(f)
		if err != nil {
			return nil, err
		}
		if err := table.Append(part); err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
	}
	return table, nil
}

// ReadFile reads one file by extension.
func ReadFile(path string) (*dom.Table, error) {
	switch format(path) {
	case FormatParquet:
		return ReadParquet(path)
	case FormatCSV:
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
		defer f.Close()

		t, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported dataset format %q", filepath.Ext(path))
	}
}

// Writer writes result tables. Columns listed in Float and Int are typed in
// Parquet output; all other columns are strings.
type Writer struct {
	Float []string
	Int   []string
}

// Write writes t to path atomically (temp file + rename), format by extension.
func (w Writer) Write(path string, t *dom.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	switch format(path) {
	case FormatParquet:
		err = w.writeParquet(f, t)
	case FormatCSV:
		err = WriteCSV(f, t)
	default:
		err = fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

func format(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
