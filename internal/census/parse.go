package census

// parse.go turns comma-separated text into a Table.
//
// The header row names the columns. Cells are cleaned before typing:
//   - a UTF-8 BOM on the first header cell is dropped
//   - invalid UTF-8 is replaced with U+FFFD
//   - header names are trimmed; empty names become "Unnamed: <index>"
//   - repeated names are suffixed ".1", ".2", ... in order of appearance
//
// Short rows are padded with missing cells. Rows with more fields than the
// header are rejected.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const utf8BOM = "\ufeff"

// naValues are the cell spellings treated as missing.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isNA(s string) bool {
	_, ok := naValues[s]
	return ok
}

// ReadTable parses CSV text with a header row into a Table.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedCSV, err)
	}

	names := headerNames(header)
	cells := make([][]string, len(names))

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCSV, err)
		}
		if len(rec) > len(names) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d",
				ErrMalformedCSV, line, len(names), len(rec))
		}

		for j := range names {
			var v string
			if j < len(rec) {
				v = strings.ToValidUTF8(rec[j], "\uFFFD")
			}
			cells[j] = append(cells[j], v)
		}
	}

	t := &Table{
		columns: make([]*Column, len(names)),
		index:   make(map[string]int, len(names)),
	}
	if len(names) > 0 {
		t.rows = len(cells[0])
	}
	for j, name := range names {
		t.columns[j] = inferColumn(name, cells[j])
		t.index[name] = j
	}

	return t, nil
}

// headerNames cleans raw header cells and makes the names unique.
func headerNames(header []string) []string {
	names := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		h = strings.TrimSpace(strings.ToValidUTF8(h, "\uFFFD"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = h
	}

	counts := make(map[string]int, len(names))
	for i, col := range names {
		cur := counts[col]
		for cur > 0 {
			counts[col] = cur + 1
			col = fmt.Sprintf("%s.%d", col, cur)
			cur = counts[col]
		}
		names[i] = col
		counts[col] = cur + 1
	}
	return names
}

// inferColumn picks the narrowest Kind that holds every non-missing cell.
func inferColumn(name string, cells []string) *Column {
	col := &Column{Name: name}

	if len(cells) == 0 {
		col.Kind = KindString
		col.strs = []string{}
		col.null = []bool{}
		return col
	}

	missing := 0
	allInt, allFloat := true, true
	for _, c := range cells {
		if isNA(c) {
			missing++
			continue
		}
		s := strings.TrimSpace(c)
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if !allInt {
			if _, ok := parseFloat(s); !ok {
				allFloat = false
				break
			}
		}
	}

	switch {
	case allInt && missing == 0:
		col.Kind = KindInt
		col.ints = make([]int64, len(cells))
		for i, c := range cells {
			col.ints[i], _ = strconv.ParseInt(strings.TrimSpace(c), 10, 64)
		}

	case allFloat:
		col.Kind = KindFloat
		col.floats = make([]float64, len(cells))
		for i, c := range cells {
			if isNA(c) {
				col.floats[i] = math.NaN()
				continue
			}
			col.floats[i], _ = parseFloat(strings.TrimSpace(c))
		}

	default:
		col.Kind = KindString
		col.strs = make([]string, len(cells))
		col.null = make([]bool, len(cells))
		for i, c := range cells {
			if isNA(c) {
				col.null[i] = true
				continue
			}
			col.strs[i] = c
		}
	}

	return col
}

// parseFloat accepts decimal and exponent notation plus inf/infinity.
// Hex floats and underscores, which strconv allows, are rejected.
func parseFloat(s string) (float64, bool) {
	if s == "" || strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
