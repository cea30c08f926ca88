package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := New([]Column{
		{Name: "Country", Kind: Categorical, Strings: []string{"UK", "FR", "UK"}, Valid: []bool{true, true, true}},
		{Name: "Revenue", Kind: Numeric, Floats: []float64{60, 50, 40}, Valid: []bool{true, true, true}},
	})
	require.NoError(t, err)
	return tbl
}

func TestNewRejectsLengthMismatch(t *testing.T) {
	_, err := New([]Column{
		{Name: "A", Kind: Categorical, Strings: []string{"x"}, Valid: []bool{true}},
		{Name: "B", Kind: Categorical, Strings: []string{"x", "y"}, Valid: []bool{true, true}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"B"`)
}

func TestSelectRows(t *testing.T) {
	tbl := testTable(t)
	sel := tbl.SelectRows([]int{2, 0})
	assert.Equal(t, 2, sel.NumRows())
	assert.Equal(t, "UK", sel.CellString(0, 0))
	assert.Equal(t, "40", sel.CellString(0, 1))
	assert.Equal(t, "60", sel.CellString(1, 1))
}

func TestAppendConcatenatesByName(t *testing.T) {
	a := testTable(t)
	b, err := New([]Column{
		// Reversed column order; Append matches by name.
		{Name: "Revenue", Kind: Numeric, Floats: []float64{5}, Valid: []bool{true}},
		{Name: "Country", Kind: Categorical, Strings: []string{"DE"}, Valid: []bool{true}},
	})
	require.NoError(t, err)

	out, err := a.Append(b)
	require.NoError(t, err)
	assert.Equal(t, 4, out.NumRows())
	assert.Equal(t, "DE", out.CellString(3, 0))
	assert.Equal(t, "5", out.CellString(3, 1))
	// Receiver column order wins.
	assert.Equal(t, []string{"Country", "Revenue"}, out.Columns())
}

func TestAppendMissingColumn(t *testing.T) {
	a := testTable(t)
	b, err := New([]Column{
		{Name: "Country", Kind: Categorical, Strings: []string{"DE"}, Valid: []bool{true}},
	})
	require.NoError(t, err)
	_, err = a.Append(b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Revenue")
}

func TestAppendCoercesMismatchedKind(t *testing.T) {
	a := testTable(t)
	b, err := New([]Column{
		{Name: "Country", Kind: Categorical, Strings: []string{"DE", "IT"}, Valid: []bool{true, true}},
		{Name: "Revenue", Kind: Categorical, Strings: []string{"12.5", "oops"}, Valid: []bool{true, true}},
	})
	require.NoError(t, err)

	out, err := a.Append(b)
	require.NoError(t, err)
	rev, _ := out.Col("Revenue")
	assert.Equal(t, Numeric, rev.Kind)
	assert.Equal(t, 12.5, rev.Floats[3])
	// Uncoercible cell becomes null rather than poisoning the column.
	assert.False(t, rev.Valid[4])
}

func TestEqual(t *testing.T) {
	a := testTable(t)
	b := testTable(t)
	assert.True(t, a.Equal(b))

	c := a.SelectRows([]int{0, 1})
	assert.False(t, a.Equal(c))
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "100", FormatFloat(100))
	assert.Equal(t, "2500.75", FormatFloat(2500.75))
	assert.Equal(t, "-0.5", FormatFloat(-0.5))
}

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"100", 100},
		{" 42 ", 42},
		{"1,234", 1234},
		{"12,345,678.9", 12345678.9},
		{"85%", 85},
		{"-1,000", -1000},
	}
	for _, c := range cases {
		got, err := ParseNumeric(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"", "N/A", "1,23", "12,34.5", ",100"} {
		_, err := ParseNumeric(bad)
		assert.Error(t, err, bad)
	}
}

func TestTableJSONRoundTrip(t *testing.T) {
	tbl, err := New([]Column{
		{Name: "Country", Kind: Categorical, Strings: []string{"UK", ""}, Valid: []bool{true, false}},
		{Name: "Revenue", Kind: Numeric, Floats: []float64{60, 0}, Valid: []bool{true, false}},
	})
	require.NoError(t, err)

	data, err := json.Marshal(tbl)
	require.NoError(t, err)

	var got Table
	require.NoError(t, json.Unmarshal(data, &got))
	assert.True(t, tbl.Equal(&got))
	assert.Equal(t, Numeric, got.Kinds()["Revenue"])
}
