package pivot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivotlens/pivotlens/internal/table"
)

// salesTable is the running example used across the pivot tests:
// Month/Country/Revenue with UK appearing twice in January.
func salesTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New([]table.Column{
		{Name: "Month", Kind: table.Date,
			Strings: []string{"Jan", "Jan", "Jan", "Feb"},
			Valid:   []bool{true, true, true, true}},
		{Name: "Country", Kind: table.Categorical,
			Strings: []string{"UK", "FR", "UK", "DE"},
			Valid:   []bool{true, true, true, true}},
		{Name: "Revenue", Kind: table.Numeric,
			Floats: []float64{60, 50, 40, 70},
			Valid:  []bool{true, true, true, true}},
	})
	require.NoError(t, err)
	return tbl
}

func TestComputeGroupBySum(t *testing.T) {
	spec := Spec{GroupBy: []string{"Country"}, Values: []string{"Revenue"}, Agg: Sum}
	res, err := Compute(salesTable(t), spec)
	require.NoError(t, err)

	assert.Equal(t, []string{"Country", "Revenue"}, res.Columns())
	require.Equal(t, 3, res.NumRows())
	// First-encountered order, not sorted.
	assert.Equal(t, "UK", res.CellString(0, 0))
	assert.Equal(t, "100", res.CellString(0, 1))
	assert.Equal(t, "FR", res.CellString(1, 0))
	assert.Equal(t, "50", res.CellString(1, 1))
	assert.Equal(t, "DE", res.CellString(2, 0))
	assert.Equal(t, "70", res.CellString(2, 1))
}

func TestComputeFilterThenGroup(t *testing.T) {
	spec := Spec{
		GroupBy: []string{"Country"},
		Values:  []string{"Revenue"},
		Filters: map[string][]string{"Country": {"UK"}},
		Agg:     Sum,
	}
	res, err := Compute(salesTable(t), spec)
	require.NoError(t, err)

	require.Equal(t, 1, res.NumRows())
	assert.Equal(t, "UK", res.CellString(0, 0))
	assert.Equal(t, "100", res.CellString(0, 1))
}

func TestComputeMultiColumnKey(t *testing.T) {
	spec := Spec{GroupBy: []string{"Month", "Country"}, Values: []string{"Revenue"}, Agg: Sum}
	res, err := Compute(salesTable(t), spec)
	require.NoError(t, err)

	require.Equal(t, 3, res.NumRows())
	// (Jan, UK) collapses rows 0 and 2.
	assert.Equal(t, "Jan", res.CellString(0, 0))
	assert.Equal(t, "UK", res.CellString(0, 1))
	assert.Equal(t, "100", res.CellString(0, 2))
}

func TestComputeEmptyGroupBy(t *testing.T) {
	spec := Spec{Values: []string{"Revenue"}, Agg: Sum}
	_, err := Compute(salesTable(t), spec)
	assert.ErrorIs(t, err, ErrEmptyGroupBy)
	assert.ErrorIs(t, spec.Validate(salesTable(t)), ErrEmptyGroupBy)
}

func TestComputeIdempotent(t *testing.T) {
	tbl := salesTable(t)
	spec := Spec{GroupBy: []string{"Country"}, Values: []string{"Revenue"}, Agg: Mean}
	a, err := Compute(tbl, spec)
	require.NoError(t, err)
	b, err := Compute(tbl, spec)
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestComputeCountWithoutValues(t *testing.T) {
	spec := Spec{GroupBy: []string{"Month"}, Agg: Count}
	res, err := Compute(salesTable(t), spec)
	require.NoError(t, err)

	assert.Equal(t, []string{"Month", "count"}, res.Columns())
	assert.Equal(t, "3", res.CellString(0, 1)) // Jan
	assert.Equal(t, "1", res.CellString(1, 1)) // Feb
}

func TestComputeAggregations(t *testing.T) {
	tbl := salesTable(t)
	cases := []struct {
		agg  Aggregation
		want string // UK group
	}{
		{Sum, "100"},
		{Min, "40"},
		{Max, "60"},
		{Mean, "50"},
		{Median, "50"},
		{Count, "2"},
		{Var, "200"},
	}
	for _, c := range cases {
		spec := Spec{GroupBy: []string{"Country"}, Values: []string{"Revenue"}, Agg: c.agg}
		res, err := Compute(tbl, spec)
		require.NoError(t, err, c.agg)
		assert.Equal(t, c.want, res.CellString(0, 1), c.agg)
	}
}

func TestComputeNullsExcludedFromAggregates(t *testing.T) {
	tbl, err := table.New([]table.Column{
		{Name: "K", Kind: table.Categorical, Strings: []string{"a", "a", "b"}, Valid: []bool{true, true, true}},
		{Name: "V", Kind: table.Numeric, Floats: []float64{10, 0, 0}, Valid: []bool{true, false, false}},
	})
	require.NoError(t, err)

	res, err := Compute(tbl, Spec{GroupBy: []string{"K"}, Values: []string{"V"}, Agg: Sum})
	require.NoError(t, err)
	assert.Equal(t, "10", res.CellString(0, 1))
	// Group with no non-null values fills 0, not null.
	assert.Equal(t, "0", res.CellString(1, 1))
}

func TestValidateRejections(t *testing.T) {
	tbl := salesTable(t)

	err := Spec{GroupBy: []string{"Revenue"}, Values: []string{"Revenue"}, Agg: Sum}.Validate(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric")

	err = Spec{GroupBy: []string{"Country"}, Values: []string{"Country"}, Agg: Sum}.Validate(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not numeric")

	err = Spec{GroupBy: []string{"Country"}, Agg: Sum}.Validate(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value column")

	err = Spec{GroupBy: []string{"Nope"}, Values: []string{"Revenue"}, Agg: Sum}.Validate(tbl)
	require.Error(t, err)

	err = Spec{GroupBy: []string{"Country"}, Values: []string{"Revenue"}, Agg: "total"}.Validate(tbl)
	require.Error(t, err)
}

func TestParseAggregation(t *testing.T) {
	a, err := ParseAggregation(" Sum ")
	require.NoError(t, err)
	assert.Equal(t, Sum, a)

	_, err = ParseAggregation("average")
	assert.Error(t, err)
}

func TestAggregateEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, Aggregate(Sum, nil))
	assert.Equal(t, 0.0, Aggregate(Count, nil))
	assert.Equal(t, 0.0, Aggregate(Std, []float64{5})) // sample std needs n>=2
	assert.Equal(t, 25.0, Aggregate(Median, []float64{10, 40, 25}))
	assert.Equal(t, 17.5, Aggregate(Median, []float64{10, 40, 25, 0}))
}
