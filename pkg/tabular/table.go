// Package tabular reads delimited equipment-parameter files into an
// in-memory table and infers column kinds.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrEmptyFile is returned when the input has no header or no data rows.
	ErrEmptyFile = errors.New("CSV file is empty")
	// ErrParse wraps malformed input.
	ErrParse = errors.New("error parsing CSV")
	// ErrMissingColumns is returned by RequireColumns.
	ErrMissingColumns = errors.New("missing required columns")
)

// Kind is the inferred storage kind of a column.
type Kind string

const (
	KindNumeric  Kind = "numeric"
	KindTemporal Kind = "temporal"
	KindString   Kind = "string"
)

var missingMarkers = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {},
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01/02/2006 15:04",
}

// Table is a parsed file. Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadCSV parses comma-separated input with a header row. Rows shorter than
// the header are padded with empty (missing) cells; longer rows are a parse
// error. Duplicate header names get a numeric suffix.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	t := &Table{Header: normalizeHeader(header)}
	t.buildIndex()

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		line++
		if len(rec) > len(t.Header) {
			return nil, fmt.Errorf("%w: expected %d fields in line %d, saw %d", ErrParse, len(t.Header), line, len(rec))
		}
		row := make([]string, len(t.Header))
		for i, cell := range rec {
			row[i] = strings.TrimSpace(cell)
		}
		t.Rows = append(t.Rows, row)
	}

	if len(t.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	return t, nil
}

func normalizeHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, name := range raw {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		header[i] = name
	}
	return header
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		t.index[name] = i
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the raw cells of a named column.
func (t *Table) Column(name string) ([]string, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Floats returns a named column as numbers. Missing or unparseable cells
// are NaN.
func (t *Table) Floats(name string) ([]float64, bool) {
	cells, ok := t.Column(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		if v, ok := ParseFloat(c); ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out, true
}

// RequireColumns returns ErrMissingColumns naming every absent column.
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return nil
}

// IsMissing reports whether a cell is a missing-value marker.
func IsMissing(cell string) bool {
	_, ok := missingMarkers[strings.TrimSpace(cell)]
	return ok
}

// ParseFloat parses a finite number from a non-missing cell.
func ParseFloat(cell string) (float64, bool) {
	if IsMissing(cell) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseTime parses a cell using the supported date and timestamp layouts.
func ParseTime(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// InferKind classifies a column. A column is numeric when every non-missing
// cell is a number (an entirely missing column counts as numeric) and
// temporal when every non-missing cell is a date or timestamp.
func InferKind(cells []string) Kind {
	numeric, temporal := true, true
	present := 0
	for _, c := range cells {
		if IsMissing(c) {
			continue
		}
		present++
		if numeric {
			if _, ok := ParseFloat(c); !ok {
				numeric = false
			}
		}
		if temporal {
			if _, ok := ParseTime(c); !ok {
				temporal = false
			}
		}
		if !numeric && !temporal {
			return KindString
		}
	}
	switch {
	case numeric:
		return KindNumeric
	case temporal && present > 0:
		return KindTemporal
	default:
		return KindString
	}
}
