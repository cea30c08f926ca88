package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivotlens/pivotlens/internal/table"
)

func TestDescribe(t *testing.T) {
	tbl, err := table.New([]table.Column{
		{Name: "Country", Kind: table.Categorical,
			Strings: []string{"UK", "FR", "UK", ""},
			Valid:   []bool{true, true, true, false}},
		{Name: "Revenue", Kind: table.Numeric,
			Floats: []float64{1, 2, 3, 4},
			Valid:  []bool{true, true, true, true}},
	})
	require.NoError(t, err)

	s := Describe(tbl)
	require.Len(t, s.Columns, 2)

	country := s.Columns[0]
	assert.Equal(t, "categorical", country.Kind)
	assert.Equal(t, []string{"UK", "FR"}, country.SampleValues)
	assert.Equal(t, 2, country.DistinctCount)

	revenue := s.Columns[1]
	assert.Equal(t, "numeric", revenue.Kind)
	assert.Empty(t, revenue.SampleValues)
}

func TestDescribeCapsSamples(t *testing.T) {
	n := 25
	strs := make([]string, n)
	valid := make([]bool, n)
	for i := range strs {
		strs[i] = fmt.Sprintf("v%02d", i)
		valid[i] = true
	}
	tbl, err := table.New([]table.Column{
		{Name: "C", Kind: table.Categorical, Strings: strs, Valid: valid},
	})
	require.NoError(t, err)

	s := Describe(tbl)
	assert.Len(t, s.Columns[0].SampleValues, 10)
	// Distinct count keeps counting past the sample cap.
	assert.Equal(t, 25, s.Columns[0].DistinctCount)
}

func TestRender(t *testing.T) {
	tbl, err := table.New([]table.Column{
		{Name: "Country", Kind: table.Categorical, Strings: []string{"UK"}, Valid: []bool{true}},
		{Name: "Revenue", Kind: table.Numeric, Floats: []float64{1}, Valid: []bool{true}},
	})
	require.NoError(t, err)

	out := Describe(tbl).Render()
	assert.Contains(t, out, "- Country: categorical (distinct=1, sample: UK)")
	assert.Contains(t, out, "- Revenue: numeric")
}
