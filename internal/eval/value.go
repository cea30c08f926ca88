// Package eval implements the restricted expression language that executes
// model-synthesized computations against a pivot result. The evaluator binds
// exactly one identifier (the table, conventionally "df") and a fixed
// allow-list of tabular operations; everything else is rejected before
// evaluation. This boundary exists because expressions originate from an
// untrusted generative source.
package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pivotlens/pivotlens/internal/table"
)

// Value is the result of evaluating an expression or subexpression.
type Value interface {
	value()
}

// Number is a numeric scalar.
type Number float64

// Str is a string scalar.
type Str string

// Bool is a boolean scalar.
type Bool bool

// Series is an ordered sequence of scalars with optional index labels
// (group keys after an aggregation).
type Series struct {
	Name   string
	Labels []string
	Vals   []Value
}

// Frame wraps a table flowing through the expression.
type Frame struct {
	Tbl *table.Table
}

// Grouped is a frame with pending group keys awaiting an aggregation.
type Grouped struct {
	Tbl  *table.Table
	Keys []string
}

// GroupedSeries is one column of a grouped frame awaiting an aggregation.
type GroupedSeries struct {
	Tbl  *table.Table
	Keys []string
	Col  string
}

// Dict is an ordered string-keyed mapping, produced by map literals such as
// {"comparison": ..., "analysis": ...}.
type Dict struct {
	Keys []string
	Vals []Value
}

func (Number) value()        {}
func (Str) value()           {}
func (Bool) value()          {}
func (*Series) value()       {}
func (*Frame) value()        {}
func (*Grouped) value()      {}
func (*GroupedSeries) value() {}
func (*Dict) value()         {}

// Format renders a final value for the response-synthesis step. Numeric
// scalars round to 2 decimal places; numeric sequences format with thousands
// separators and 2 decimals per element.
func Format(v Value) string {
	switch x := v.(type) {
	case Number:
		return formatScalar(float64(x))
	case Str:
		return string(x)
	case Bool:
		return strconv.FormatBool(bool(x))
	case *Series:
		var b strings.Builder
		if x.Name != "" {
			b.WriteString(x.Name)
			b.WriteString(":\n")
		}
		for i, item := range x.Vals {
			if i > 0 {
				b.WriteString("\n")
			}
			if len(x.Labels) == len(x.Vals) {
				b.WriteString(x.Labels[i])
				b.WriteString("    ")
			}
			if n, ok := item.(Number); ok {
				b.WriteString(formatThousands(float64(n)))
			} else {
				b.WriteString(Format(item))
			}
		}
		return b.String()
	case *Frame:
		return formatFrame(x.Tbl)
	case *Dict:
		var b strings.Builder
		for i, k := range x.Keys {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(Format(x.Vals[i]))
		}
		return b.String()
	case *Grouped, *GroupedSeries:
		return "(pending aggregation)"
	}
	return fmt.Sprintf("%v", v)
}

func formatScalar(f float64) string {
	r := math.Round(f*100) / 100
	s := strconv.FormatFloat(r, 'f', -1, 64)
	return s
}

// formatThousands renders 1234567.8 as 1,234,567.80.
func formatThousands(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	s := strconv.FormatFloat(math.Round(f*100)/100, 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	b.WriteString(frac)
	return b.String()
}

func formatFrame(tbl *table.Table) string {
	var b strings.Builder
	b.WriteString(strings.Join(tbl.Columns(), " | "))
	for r := 0; r < tbl.NumRows(); r++ {
		b.WriteString("\n")
		cells := make([]string, tbl.NumCols())
		for c := 0; c < tbl.NumCols(); c++ {
			col := tbl.ColAt(c)
			if col.Kind == table.Numeric && col.Valid[r] {
				cells[c] = formatThousands(col.Floats[r])
			} else {
				cells[c] = tbl.CellString(r, c)
			}
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	return b.String()
}
