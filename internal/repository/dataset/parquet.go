package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	dom "github.com/kailas-cloud/bureaucratese/internal/domain/dataset"
)

const readBatch = 1000

// leafColumn — позиция колонки в Table и конвертер parquet value -> string.
type leafColumn struct {
	pos     int
	convert func(parquet.Value) string
}

// ReadParquet reads top-level leaf columns of a Parquet file. Nested and
// repeated columns are ignored.
func ReadParquet(path string) (*dom.Table, error) {
	h, err := openParquet(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	defer h.Close()

	names, cols := resolveColumns(h.pf)
	t := &dom.Table{Columns: names}

	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		buf := make([]parquet.Row, readBatch)

		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				t.Rows = append(t.Rows, rowToCells(buf[i], cols, len(names)))
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("%s: read rows: %w", path, readErr)
			}
		}
	}
	return t, nil
}

// resolveColumns находит top-level leaf колонки и их конвертеры.
func resolveColumns(pf *parquet.File) ([]string, map[int]leafColumn) {
	schema := pf.Schema()
	var names []string
	cols := make(map[int]leafColumn)

	for i, path := range schema.Columns() {
		if len(path) != 1 {
			continue
		}
		leaf, ok := schema.Lookup(path...)
		if !ok || leaf.MaxRepetitionLevel > 0 {
			continue
		}
		cols[i] = leafColumn{pos: len(names), convert: converterFor(leaf.Node.Type())}
		names = append(names, path[0])
	}
	return names, cols
}

func rowToCells(row parquet.Row, cols map[int]leafColumn, width int) []dom.Cell {
	cells := make([]dom.Cell, width)
	for i := range cells {
		cells[i] = dom.NullCell
	}
	for _, v := range row {
		col, ok := cols[v.Column()]
		if !ok || v.IsNull() {
			continue
		}
		cells[col.pos] = dom.StringCell(col.convert(v))
	}
	return cells
}

// converterFor renders values as strings. DATE columns become YYYY-MM-DD and
// TIMESTAMP columns RFC 3339, so date parsing downstream is uniform.
func converterFor(typ parquet.Type) func(parquet.Value) string {
	lt := typ.LogicalType()

	switch typ.Kind() {
	case parquet.Boolean:
		return func(v parquet.Value) string { return strconv.FormatBool(v.Boolean()) }
	case parquet.Int32:
		if lt != nil && lt.Date != nil {
			return func(v parquet.Value) string {
				return time.Unix(int64(v.Int32())*86400, 0).UTC().Format(time.DateOnly)
			}
		}
		return func(v parquet.Value) string { return strconv.FormatInt(int64(v.Int32()), 10) }
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			return func(v parquet.Value) string {
				return dom.EpochToTime(v.Int64()).Format(time.RFC3339Nano)
			}
		}
		return func(v parquet.Value) string { return strconv.FormatInt(v.Int64(), 10) }
	case parquet.Float:
		return func(v parquet.Value) string { return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32) }
	case parquet.Double:
		return func(v parquet.Value) string { return strconv.FormatFloat(v.Double(), 'g', -1, 64) }
	default:
		return func(v parquet.Value) string { return v.String() }
	}
}

// writeParquet пишет таблицу; parquet.Group упорядочивает колонки по имени.
func (w Writer) writeParquet(out io.Writer, t *dom.Table) error {
	group := parquet.Group{}
	for _, c := range t.Columns {
		switch {
		case slices.Contains(w.Float, c):
			group[c] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		case slices.Contains(w.Int, c):
			group[c] = parquet.Optional(parquet.Int(32))
		default:
			group[c] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("bureaucratese", group)

	order := make([]int, 0, len(t.Columns))
	for _, path := range schema.Columns() {
		order = append(order, t.ColumnIndex(path[0]))
	}

	pw := parquet.NewWriter(out, schema)
	batch := make([]parquet.Row, 0, readBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pw.WriteRows(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for ri, r := range t.Rows {
		row := make(parquet.Row, len(order))
		for ci, ti := range order {
			v, err := w.value(t.Columns[ti], r[ti])
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", ri, t.Columns[ti], err)
			}
			if r[ti].Null {
				row[ci] = v.Level(0, 0, ci)
			} else {
				row[ci] = v.Level(0, 1, ci)
			}
		}
		batch = append(batch, row)
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func (w Writer) value(column string, c dom.Cell) (parquet.Value, error) {
	if c.Null {
		return parquet.NullValue(), nil
	}
	switch {
	case slices.Contains(w.Float, column):
		f, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return parquet.Value{}, err
		}
		return parquet.DoubleValue(f), nil
	case slices.Contains(w.Int, column):
		n, err := strconv.ParseInt(c.Value, 10, 32)
		if err != nil {
			return parquet.Value{}, err
		}
		return parquet.Int32Value(int32(n)), nil
	default:
		return parquet.ByteArrayValue([]byte(c.Value)), nil
	}
}

// parquetHandle wraps parquet.File + underlying os.File for proper cleanup.
type parquetHandle struct {
	pf   *parquet.File
	file *os.File
}

func (h *parquetHandle) Close() {
	_ = h.file.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetHandle{pf: pf, file: f}, nil
}
