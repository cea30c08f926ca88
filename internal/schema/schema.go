// Package schema builds the compact column description handed to the
// language model. The sample values and distinct counts here are the only
// representation of the data that ever leaves the process.
package schema

import (
	"fmt"
	"strings"

	"github.com/pivotlens/pivotlens/internal/table"
)

const maxSampleValues = 10

// ColumnSchema describes one result column for prompting.
type ColumnSchema struct {
	Name          string   `json:"name"`
	Kind          string   `json:"kind"`
	SampleValues  []string `json:"sample_values,omitempty"`
	DistinctCount int      `json:"distinct_count,omitempty"`
}

// Schema is the per-column description in table column order.
type Schema struct {
	Columns []ColumnSchema
}

// Describe introspects a pivot result table. Numeric columns record only
// their kind; categorical and date columns record the first 10 distinct
// values plus the total distinct count.
func Describe(tbl *table.Table) *Schema {
	s := &Schema{Columns: make([]ColumnSchema, 0, tbl.NumCols())}
	for i, name := range tbl.Columns() {
		col := tbl.ColAt(i)
		if col.Kind == table.Numeric {
			s.Columns = append(s.Columns, ColumnSchema{Name: name, Kind: "numeric"})
			continue
		}
		seen := make(map[string]bool)
		var samples []string
		for r := 0; r < col.Len(); r++ {
			if !col.Valid[r] {
				continue
			}
			v := col.Strings[r]
			if seen[v] {
				continue
			}
			seen[v] = true
			if len(samples) < maxSampleValues {
				samples = append(samples, v)
			}
		}
		s.Columns = append(s.Columns, ColumnSchema{
			Name:          name,
			Kind:          "categorical",
			SampleValues:  samples,
			DistinctCount: len(seen),
		})
	}
	return s
}

// Render emits the textual form embedded in prompts.
func (s *Schema) Render() string {
	var b strings.Builder
	for _, c := range s.Columns {
		if c.Kind == "numeric" {
			fmt.Fprintf(&b, "- %s: numeric\n", c.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s: categorical (distinct=%d", c.Name, c.DistinctCount)
		if len(c.SampleValues) > 0 {
			fmt.Fprintf(&b, ", sample: %s", strings.Join(c.SampleValues, ", "))
		}
		b.WriteString(")\n")
	}
	return b.String()
}
