package census

import (
	"fmt"
	"math"
)

// Column names the population mapping is built from.
const (
	PrefectureColumn = "Prefecture"
	PopulationColumn = "Population"
)

// PopulationRow is one source row's prefecture and population, in file order.
type PopulationRow struct {
	Row        int // zero-based data row index
	Prefecture string
	Population int64
}

// PopulationRows extracts the Prefecture and Population columns row by row.
// Population must be an int column, or a float column whose every value is a
// whole number.
func PopulationRows(t *Table) ([]PopulationRow, error) {
	pref, okPref := t.Column(PrefectureColumn)
	pop, okPop := t.Column(PopulationColumn)
	switch {
	case !okPref && !okPop:
		return nil, fmt.Errorf("%w: %q, %q", ErrMissingColumn, PrefectureColumn, PopulationColumn)
	case !okPref:
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, PrefectureColumn)
	case !okPop:
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, PopulationColumn)
	}

	// A header-only table infers every column as text.
	if pop.Kind == KindString && t.Len() > 0 {
		return nil, fmt.Errorf("%w: %q holds text, want integers", ErrColumnType, PopulationColumn)
	}

	rows := make([]PopulationRow, t.Len())
	for i := range rows {
		n, err := populationAt(pop, i)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %s", ErrColumnType, i+1, err)
		}
		rows[i] = PopulationRow{
			Row:        i,
			Prefecture: pref.Text(i),
			Population: n,
		}
	}
	return rows, nil
}

func populationAt(c *Column, i int) (int64, error) {
	if n, ok := c.Int(i); ok {
		return n, nil
	}

	v, ok := c.Float(i)
	switch {
	case !ok:
		return 0, fmt.Errorf("%q is missing", PopulationColumn)
	case v != math.Trunc(v) || math.IsInf(v, 0):
		return 0, fmt.Errorf("%q is not a whole number: %v", PopulationColumn, v)
	case v < math.MinInt64 || v >= math.MaxInt64:
		return 0, fmt.Errorf("%q out of range: %v", PopulationColumn, v)
	}
	return int64(v), nil
}

// PopulationByPrefecture maps each prefecture to its population. When a
// prefecture appears on several rows the last row wins.
func PopulationByPrefecture(t *Table) (map[string]int64, error) {
	rows, err := PopulationRows(t)
	if err != nil {
		return nil, err
	}

	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Prefecture] = r.Population
	}
	return m, nil
}
