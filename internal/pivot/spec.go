package pivot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pivotlens/pivotlens/internal/table"
)

// Aggregation names a supported aggregate function.
type Aggregation string

const (
	Sum    Aggregation = "sum"
	Min    Aggregation = "min"
	Max    Aggregation = "max"
	Mean   Aggregation = "mean"
	Median Aggregation = "median"
	Count  Aggregation = "count"
	Std    Aggregation = "std"
	Var    Aggregation = "var"
)

// Aggregations lists every supported aggregation in a stable order.
func Aggregations() []Aggregation {
	return []Aggregation{Sum, Min, Max, Mean, Median, Count, Std, Var}
}

// ParseAggregation validates a user-supplied aggregation name.
func ParseAggregation(s string) (Aggregation, error) {
	a := Aggregation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Aggregations() {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown aggregation %q", s)
}

// ErrEmptyGroupBy is returned when a pivot is attempted with no grouping
// columns. Callers validate specs before computing; the engine still guards.
var ErrEmptyGroupBy = errors.New("pivot requires at least one group-by column")

// Spec is the configuration producing one pivot view.
type Spec struct {
	// GroupBy columns, in output order. Categorical and date kinds only.
	GroupBy []string `json:"group_by"`
	// Values are the numeric columns to aggregate. May be empty only for
	// the count aggregation.
	Values []string `json:"values"`
	// Filters keeps only rows whose stringified column value is in the
	// allowed set. Exact set membership, not partial match.
	Filters map[string][]string `json:"filters,omitempty"`
	// Agg is the single aggregation applied to every value column.
	Agg Aggregation `json:"aggregation"`
}

// Validate checks the spec against the source table. It is the caller-side
// guard required before Compute.
func (s Spec) Validate(tbl *table.Table) error {
	if len(s.GroupBy) == 0 {
		return ErrEmptyGroupBy
	}
	if _, err := ParseAggregation(string(s.Agg)); err != nil {
		return err
	}
	if len(s.Values) == 0 && s.Agg != Count {
		return fmt.Errorf("aggregation %q requires at least one value column", s.Agg)
	}
	kinds := tbl.Kinds()
	for _, g := range s.GroupBy {
		k, ok := kinds[g]
		if !ok {
			return fmt.Errorf("group-by column %q not in table", g)
		}
		if k == table.Numeric {
			return fmt.Errorf("group-by column %q is numeric; use categorical or date columns", g)
		}
	}
	for _, v := range s.Values {
		k, ok := kinds[v]
		if !ok {
			return fmt.Errorf("value column %q not in table", v)
		}
		if k != table.Numeric {
			return fmt.Errorf("value column %q is %s, not numeric", v, k)
		}
	}
	for f := range s.Filters {
		if _, ok := kinds[f]; !ok {
			return fmt.Errorf("filter column %q not in table", f)
		}
	}
	return nil
}

// Describe renders the spec for conversation context and listings.
func (s Spec) Describe() string {
	var b strings.Builder
	b.WriteString("- Rows: ")
	if len(s.GroupBy) > 0 {
		b.WriteString(strings.Join(s.GroupBy, ", "))
	} else {
		b.WriteString("None")
	}
	b.WriteString("\n- Values: ")
	if len(s.Values) > 0 {
		b.WriteString(strings.Join(s.Values, ", "))
	} else {
		b.WriteString("None")
	}
	b.WriteString("\n- Aggregation: ")
	b.WriteString(string(s.Agg))
	if len(s.Filters) > 0 {
		b.WriteString(fmt.Sprintf("\n- Filters on: %s", strings.Join(filterColumns(s.Filters), ", ")))
	}
	return b.String()
}

func filterColumns(filters map[string][]string) []string {
	out := make([]string, 0, len(filters))
	for c := range filters {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
