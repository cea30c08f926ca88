package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the inferred semantic kind of a column.
type Kind string

const (
	Numeric     Kind = "numeric"
	Date        Kind = "date"
	Categorical Kind = "categorical"
)

// Column holds one typed column. Numeric columns store parsed values in
// Floats; date and categorical columns store stringified values in Strings.
// Valid marks non-null cells and always has the column length.
type Column struct {
	Name    string    `json:"name"`
	Kind    Kind      `json:"kind"`
	Floats  []float64 `json:"floats,omitempty"`
	Strings []string  `json:"strings,omitempty"`
	Valid   []bool    `json:"valid"`
}

// Len returns the number of rows in the column.
func (c *Column) Len() int { return len(c.Valid) }

// Table is an immutable-after-build, column-typed table. All columns have
// the same length.
type Table struct {
	cols []Column
}

// New builds a table from fully-populated columns. Column lengths must agree.
func New(cols []Column) (*Table, error) {
	if len(cols) == 0 {
		return &Table{}, nil
	}
	n := cols[0].Len()
	for i := range cols {
		if cols[i].Len() != n {
			return nil, fmt.Errorf("column %q has %d rows, want %d", cols[i].Name, cols[i].Len(), n)
		}
	}
	return &Table{cols: cols}, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	for i := range t.cols {
		out[i] = t.cols[i].Name
	}
	return out
}

// Kinds returns the column->kind mapping.
func (t *Table) Kinds() map[string]Kind {
	out := make(map[string]Kind, len(t.cols))
	for i := range t.cols {
		out[t.cols[i].Name] = t.cols[i].Kind
	}
	return out
}

// Col returns the column with the given name.
func (t *Table) Col(name string) (*Column, bool) {
	for i := range t.cols {
		if t.cols[i].Name == name {
			return &t.cols[i], true
		}
	}
	return nil, false
}

// ColAt returns the column at index i.
func (t *Table) ColAt(i int) *Column { return &t.cols[i] }

// CellString renders the cell at (row, col index) as a string; null cells
// render empty.
func (t *Table) CellString(row, col int) string {
	c := &t.cols[col]
	if !c.Valid[row] {
		return ""
	}
	if c.Kind == Numeric {
		return FormatFloat(c.Floats[row])
	}
	return c.Strings[row]
}

// ColumnString renders one cell from a named column.
func (t *Table) ColumnString(name string, row int) (string, error) {
	for i := range t.cols {
		if t.cols[i].Name == name {
			return t.CellString(row, i), nil
		}
	}
	return "", fmt.Errorf("unknown column %q", name)
}

// SelectRows produces a new table containing the given rows in order.
func (t *Table) SelectRows(rows []int) *Table {
	cols := make([]Column, len(t.cols))
	for i := range t.cols {
		src := &t.cols[i]
		dst := Column{Name: src.Name, Kind: src.Kind, Valid: make([]bool, len(rows))}
		if src.Kind == Numeric {
			dst.Floats = make([]float64, len(rows))
		} else {
			dst.Strings = make([]string, len(rows))
		}
		for j, r := range rows {
			dst.Valid[j] = src.Valid[r]
			if src.Kind == Numeric {
				dst.Floats[j] = src.Floats[r]
			} else {
				dst.Strings[j] = src.Strings[r]
			}
		}
		cols[i] = dst
	}
	return &Table{cols: cols}
}

// Append concatenates other's rows onto a copy of t. Columns are matched by
// name; both tables must have identical column sets. The receiver's kinds win.
func (t *Table) Append(other *Table) (*Table, error) {
	cols := make([]Column, len(t.cols))
	for i := range t.cols {
		src := &t.cols[i]
		oc, ok := other.Col(src.Name)
		if !ok {
			return nil, fmt.Errorf("column %q missing from appended table", src.Name)
		}
		dst := Column{Name: src.Name, Kind: src.Kind}
		dst.Valid = append(append([]bool{}, src.Valid...), oc.Valid...)
		if src.Kind == Numeric {
			dst.Floats = append([]float64{}, src.Floats...)
			for r := 0; r < oc.Len(); r++ {
				if oc.Kind == Numeric {
					dst.Floats = append(dst.Floats, oc.Floats[r])
				} else {
					// Mismatched kind after a join inherits the first
					// dataset's kind; coerce best-effort.
					v, err := ParseNumeric(oc.Strings[r])
					if err != nil {
						dst.Valid[src.Len()+r] = false
						v = 0
					}
					dst.Floats = append(dst.Floats, v)
				}
			}
		} else {
			dst.Strings = append([]string{}, src.Strings...)
			for r := 0; r < oc.Len(); r++ {
				if oc.Kind == Numeric {
					dst.Strings = append(dst.Strings, FormatFloat(oc.Floats[r]))
				} else {
					dst.Strings = append(dst.Strings, oc.Strings[r])
				}
			}
		}
		cols[i] = dst
	}
	return &Table{cols: cols}, nil
}

// Equal reports row-for-row, cell-for-cell equality including column order
// and kinds.
func (t *Table) Equal(other *Table) bool {
	if t.NumCols() != other.NumCols() || t.NumRows() != other.NumRows() {
		return false
	}
	for i := range t.cols {
		a, b := &t.cols[i], &other.cols[i]
		if a.Name != b.Name || a.Kind != b.Kind {
			return false
		}
		for r := 0; r < a.Len(); r++ {
			if a.Valid[r] != b.Valid[r] {
				return false
			}
			if !a.Valid[r] {
				continue
			}
			if a.Kind == Numeric {
				if a.Floats[r] != b.Floats[r] {
					return false
				}
			} else if a.Strings[r] != b.Strings[r] {
				return false
			}
		}
	}
	return true
}

// Rows renders every row as strings, in column order. Intended for display
// and for feeding the evaluator's table values.
func (t *Table) Rows() [][]string {
	out := make([][]string, t.NumRows())
	for r := range out {
		row := make([]string, t.NumCols())
		for c := range t.cols {
			row[c] = t.CellString(r, c)
		}
		out[r] = row
	}
	return out
}

// FormatFloat renders a float the way cells are compared and displayed:
// integers without a decimal point, everything else in shortest form.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseNumeric parses a cell value as a number. Thousands separators in the
// common 1,234,567.89 shape are tolerated, as are surrounding spaces and a
// trailing percent sign.
func ParseNumeric(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.TrimSpace(raw)
	if looksThousands(raw) {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	return strconv.ParseFloat(raw, 64)
}

// looksThousands matches numbers like 1,234 or -12,345,678.9 where every
// comma separates exactly three digits.
func looksThousands(s string) bool {
	if !strings.Contains(s, ",") {
		return false
	}
	body := strings.TrimLeft(s, "+-")
	parts := strings.SplitN(body, ".", 2)
	groups := strings.Split(parts[0], ",")
	if len(groups) < 2 || len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups {
		if g == "" {
			return false
		}
		for _, r := range g {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
