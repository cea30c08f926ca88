package pivot

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pivotlens/pivotlens/internal/table"
)

// Compute materializes a pivot: filter, group by the full key tuple in
// first-encountered order, aggregate each value column. Pure function of its
// inputs. Missing aggregates fill with 0.
func Compute(tbl *table.Table, spec Spec) (*table.Table, error) {
	if len(spec.GroupBy) == 0 {
		return nil, ErrEmptyGroupBy
	}
	if err := spec.Validate(tbl); err != nil {
		return nil, err
	}

	rows, err := applyFilters(tbl, spec.Filters)
	if err != nil {
		return nil, err
	}

	gbIdx := make([]int, len(spec.GroupBy))
	for i, g := range spec.GroupBy {
		gbIdx[i] = colIndex(tbl, g)
	}
	valIdx := make([]int, len(spec.Values))
	for i, v := range spec.Values {
		valIdx[i] = colIndex(tbl, v)
	}

	// Group rows by key tuple, first-encountered order.
	type group struct {
		keys []string
		rows []int
	}
	var order []*group
	seen := make(map[string]*group)
	for _, r := range rows {
		keys := make([]string, len(gbIdx))
		for i, ci := range gbIdx {
			keys[i] = tbl.CellString(r, ci)
		}
		k := strings.Join(keys, "\x1f")
		g, ok := seen[k]
		if !ok {
			g = &group{keys: keys}
			seen[k] = g
			order = append(order, g)
		}
		g.rows = append(g.rows, r)
	}

	// Assemble output columns: group keys first, then aggregates.
	out := make([]table.Column, 0, len(gbIdx)+len(valIdx)+1)
	kinds := tbl.Kinds()
	for i, name := range spec.GroupBy {
		col := table.Column{Name: name, Kind: kinds[name]}
		col.Strings = make([]string, len(order))
		col.Valid = make([]bool, len(order))
		for gi, g := range order {
			col.Strings[gi] = g.keys[i]
			col.Valid[gi] = g.keys[i] != ""
		}
		out = append(out, col)
	}

	if len(valIdx) == 0 && spec.Agg == Count {
		col := table.Column{Name: "count", Kind: table.Numeric}
		col.Floats = make([]float64, len(order))
		col.Valid = make([]bool, len(order))
		for gi, g := range order {
			col.Floats[gi] = float64(len(g.rows))
			col.Valid[gi] = true
		}
		out = append(out, col)
	}
	for _, name := range spec.Values {
		src, _ := tbl.Col(name)
		col := table.Column{Name: name, Kind: table.Numeric}
		col.Floats = make([]float64, len(order))
		col.Valid = make([]bool, len(order))
		for gi, g := range order {
			vals := make([]float64, 0, len(g.rows))
			for _, r := range g.rows {
				if src.Valid[r] {
					vals = append(vals, src.Floats[r])
				}
			}
			col.Floats[gi] = Aggregate(spec.Agg, vals)
			col.Valid[gi] = true
		}
		out = append(out, col)
	}

	res, err := table.New(out)
	if err != nil {
		return nil, fmt.Errorf("assemble pivot result: %w", err)
	}
	return res, nil
}

// applyFilters returns the surviving row indices after applying each filter
// sequentially with set-membership semantics over stringified values.
func applyFilters(tbl *table.Table, filters map[string][]string) ([]int, error) {
	rows := make([]int, tbl.NumRows())
	for i := range rows {
		rows[i] = i
	}
	// Apply in stable column order; set semantics make order irrelevant to
	// the outcome but deterministic iteration keeps behavior reproducible.
	cols := make([]string, 0, len(filters))
	for c := range filters {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		ci := colIndex(tbl, c)
		if ci < 0 {
			return nil, fmt.Errorf("filter column %q not in table", c)
		}
		allowed := make(map[string]bool, len(filters[c]))
		for _, v := range filters[c] {
			allowed[v] = true
		}
		kept := rows[:0]
		for _, r := range rows {
			if allowed[tbl.CellString(r, ci)] {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	return rows, nil
}

func colIndex(tbl *table.Table, name string) int {
	for i, c := range tbl.Columns() {
		if c == name {
			return i
		}
	}
	return -1
}

// Aggregate reduces a slice of values with the named aggregation. An empty
// or undefined aggregate (e.g. sample std of one value) yields 0. Shared
// with the expression evaluator.
func Aggregate(agg Aggregation, vals []float64) float64 {
	if agg == Count {
		return float64(len(vals))
	}
	if len(vals) == 0 {
		return 0
	}
	switch agg {
	case Sum:
		return sum(vals)
	case Min:
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case Max:
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case Mean:
		return sum(vals) / float64(len(vals))
	case Median:
		return median(vals)
	case Std:
		return math.Sqrt(sampleVar(vals))
	case Var:
		return sampleVar(vals)
	}
	return 0
}

func sum(vals []float64) float64 {
	var s float64
	for _, v := range vals {
		s += v
	}
	return s
}

func median(vals []float64) float64 {
	cp := append([]float64{}, vals...)
	sort.Float64s(cp)
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

func sampleVar(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	mean := sum(vals) / float64(len(vals))
	var m2 float64
	for _, v := range vals {
		d := v - mean
		m2 += d * d
	}
	return m2 / float64(len(vals)-1)
}
