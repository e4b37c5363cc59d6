package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cell is a nullable string value.
type Cell struct {
	Value string
	Null  bool
}

// NullCell is the missing value.
var NullCell = Cell{Null: true}

// StringCell wraps a present value.
func StringCell(v string) Cell { return Cell{Value: v} }

// Table is an in-memory tabular dataset. Every row has len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of name or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds the rows of other. Columns must match exactly.
func (t *Table) Append(other *Table) error {
	if len(t.Columns) == 0 && len(t.Rows) == 0 {
		t.Columns = other.Columns
	} else if strings.Join(t.Columns, "\x00") != strings.Join(other.Columns, "\x00") {
		return fmt.Errorf("column mismatch: %v vs %v", t.Columns, other.Columns)
	}
	t.Rows = append(t.Rows, other.Rows...)
	return nil
}

// Fingerprint identifies the shape of the table: columns and record count.
func (t *Table) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00%s", len(t.Rows), strings.Join(t.Columns, "\x00"))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// dateLayouts are tried in order for string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"2006年01月02日",
	"2006年1月2日",
	"20060102",
}

// ParseDate parses a date cell value in any supported layout.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) > 8 {
		return EpochToTime(n), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// EpochToTime converts an integer epoch, inferring seconds, milliseconds,
// microseconds or nanoseconds from its magnitude.
func EpochToTime(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 1e11:
		return time.Unix(n, 0).UTC()
	case abs < 1e14:
		return time.UnixMilli(n).UTC()
	case abs < 1e17:
		return time.UnixMicro(n).UTC()
	default:
		return time.Unix(0, n).UTC()
	}
}
