package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/table"
)

func testView(t *testing.T) *pivot.View {
	t.Helper()
	tbl, err := table.New([]table.Column{
		{Name: "Country", Kind: table.Categorical, Strings: []string{"UK", "FR"}, Valid: []bool{true, true}},
		{Name: "Revenue", Kind: table.Numeric, Floats: []float64{100, 50}, Valid: []bool{true, true}},
	})
	require.NoError(t, err)
	v, err := pivot.NewView("sales by country", "src-1", tbl,
		pivot.Spec{GroupBy: []string{"Country"}, Values: []string{"Revenue"}, Agg: pivot.Sum})
	require.NoError(t, err)
	return v
}

func TestPopLast(t *testing.T) {
	l := NewLog()
	l.Append(Message{Role: RoleUser, Content: "q"})
	l.Append(Message{Role: RoleAssistant, Content: "a"})

	m, ok := l.PopLast()
	require.True(t, ok)
	assert.Equal(t, RoleAssistant, m.Role)
	assert.Equal(t, 1, l.Len())

	l.PopLast()
	_, ok = l.PopLast()
	assert.False(t, ok)
}

func TestLastAssistantSkipsEmptyContent(t *testing.T) {
	l := NewLog()
	l.Append(Message{Role: RoleAssistant, Content: "first", Expression: `df["Revenue"].sum()`})
	l.Append(Message{Role: RoleUser, Content: "follow-up"})
	l.Append(Message{Role: RoleAssistant, Content: ""})

	m, ok := l.LastAssistant()
	require.True(t, ok)
	assert.Equal(t, "first", m.Content)
}

func TestBuildContextIncludesPivotAndExpressions(t *testing.T) {
	l := NewLog()
	l.Append(Message{Role: RoleUser, Content: "total revenue?"})
	l.Append(Message{Role: RoleAssistant, Content: "150", Expression: `df["Revenue"].sum()`})

	out := BuildContext(l, testView(t), "sales")
	assert.Contains(t, out, "pivot table named 'sales by country'")
	assert.Contains(t, out, "dataset 'sales'")
	assert.Contains(t, out, "User: total revenue?")
	assert.Contains(t, out, "Assistant: 150")
	assert.Contains(t, out, `Expression used: df["Revenue"].sum()`)
	assert.Contains(t, out, "Aggregation: sum")
}

func TestBuildContextWindowsLastTen(t *testing.T) {
	l := NewLog()
	for i := 0; i < 14; i++ {
		l.Append(Message{Role: RoleUser, Content: fmt.Sprintf("question %d", i)})
	}

	out := BuildContext(l, testView(t), "sales")
	assert.NotContains(t, out, "question 3")
	assert.Contains(t, out, "question 4")
	assert.Contains(t, out, "question 13")
	assert.Equal(t, 10, strings.Count(out, "User: question"))
}
