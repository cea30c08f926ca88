package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pivotlens/pivotlens/internal/conversation"
	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/table"
)

// scriptedLLM routes prompts to canned responses by prompt markers and
// records every prompt for assertions.
type scriptedLLM struct {
	prompts []string
	// expressions returned by successive synthesis calls
	expressions []string
	synthCalls  int
	failAll     bool
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.failAll {
		return "", errors.New("model unavailable")
	}
	switch {
	case strings.Contains(prompt, "Return ONLY a raw JSON object"):
		return `{"metric_columns":["Revenue"],"filter_columns":{},"group_by_columns":[],"time_period":"","aggregation":"sum"}`, nil
	case strings.Contains(prompt, "Expression:"):
		i := s.synthCalls
		s.synthCalls++
		if i >= len(s.expressions) {
			i = len(s.expressions) - 1
		}
		return s.expressions[i], nil
	case strings.Contains(prompt, "Data Output:"):
		return "The total revenue is shown above.", nil
	case strings.Contains(prompt, "financial analyst reviewing data"):
		return "Revenue is concentrated in the UK.", nil
	}
	return "", fmt.Errorf("unexpected prompt: %.60s", prompt)
}

func (s *scriptedLLM) promptsContaining(marker string) []string {
	var out []string
	for _, p := range s.prompts {
		if strings.Contains(p, marker) {
			out = append(out, p)
		}
	}
	return out
}

func testView(t *testing.T) *pivot.View {
	t.Helper()
	tbl, err := table.New([]table.Column{
		{Name: "Country", Kind: table.Categorical,
			Strings: []string{"UK", "FR", "UK"},
			Valid:   []bool{true, true, true}},
		{Name: "Revenue", Kind: table.Numeric,
			Floats: []float64{60, 50, 40},
			Valid:  []bool{true, true, true}},
	})
	require.NoError(t, err)
	v, err := pivot.NewView("sales", "src", tbl,
		pivot.Spec{GroupBy: []string{"Country"}, Values: []string{"Revenue"}, Agg: pivot.Sum})
	require.NoError(t, err)
	return v
}

func TestAskComputationalHappyPath(t *testing.T) {
	llm := &scriptedLLM{expressions: []string{`df["Revenue"].sum()`}}
	e := NewEngine(llm, testView(t))

	resp, err := e.Ask(context.Background(), "What is the total revenue?", "", conversation.NewLog())
	require.NoError(t, err)
	assert.Equal(t, "The total revenue is shown above.", resp.Answer)
	assert.Equal(t, `df["Revenue"].sum()`, resp.Expression)
	// Schema analysis, synthesis, response synthesis: three model calls.
	assert.Len(t, llm.prompts, 3)
	// The computed output reached response synthesis.
	assert.Contains(t, llm.prompts[2], "Data Output: 150")
}

func TestAskRetriesOnBadExpression(t *testing.T) {
	llm := &scriptedLLM{expressions: []string{
		`df["NoSuchColumn"].sum()`, // attempt 1 fails in the sandbox
		`df["Revenue"].sum()`,      // attempt 2 succeeds
	}}
	e := NewEngine(llm, testView(t))

	resp, err := e.Ask(context.Background(), "total revenue", "Previous conversation:\nUser: hi", conversation.NewLog())
	require.NoError(t, err)
	assert.Equal(t, `df["Revenue"].sum()`, resp.Expression)
	assert.Equal(t, 2, llm.synthCalls)
}

func TestRetrySecondAttemptDegradesContext(t *testing.T) {
	llm := &scriptedLLM{expressions: []string{
		`df["NoSuchColumn"].sum()`,
		`df["Revenue"].sum()`,
	}}
	e := NewEngine(llm, testView(t))

	full := "You are analyzing a pivot table named 'sales'.\nPrevious conversation: ..."
	_, err := e.Ask(context.Background(), "total revenue", full, conversation.NewLog())
	require.NoError(t, err)

	synth := llm.promptsContaining("Expression:")
	require.Len(t, synth, 2)
	assert.Contains(t, synth[0], "Previous conversation")
	assert.NotContains(t, synth[1], "Previous conversation")
	assert.Contains(t, synth[1], "Analyzing pivot table. Question: total revenue")
}

func TestRetryBoundedAtThreeAttempts(t *testing.T) {
	llm := &scriptedLLM{expressions: []string{`df["NoSuchColumn"].sum()`}}
	e := NewEngine(llm, testView(t))

	_, err := e.Ask(context.Background(), "total revenue", "", conversation.NewLog())
	require.Error(t, err)
	assert.Equal(t, 3, llm.synthCalls)
	assert.Contains(t, err.Error(), "NoSuchColumn")
}

func TestSynthesizedFencesStripped(t *testing.T) {
	llm := &scriptedLLM{expressions: []string{"```python\ndf[\"Revenue\"].sum()\n```"}}
	e := NewEngine(llm, testView(t))

	resp, err := e.Ask(context.Background(), "total revenue", "", conversation.NewLog())
	require.NoError(t, err)
	assert.Equal(t, `df["Revenue"].sum()`, resp.Expression)
}

func TestAnalyticalReusesPriorResult(t *testing.T) {
	llm := &scriptedLLM{}
	e := NewEngine(llm, testView(t))

	log := conversation.NewLog()
	log.Append(conversation.Message{Role: conversation.RoleUser, Content: "total revenue"})
	log.Append(conversation.Message{
		Role: conversation.RoleAssistant, Content: "150", Expression: `df["Revenue"].sum()`,
	})

	resp, err := e.Ask(context.Background(), "why did revenue drop", "ctx", log)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.Answer, "**Analysis of Previous Results:**"))
	assert.Contains(t, resp.Answer, "Revenue is concentrated in the UK.")
	// The prior expression is carried, not re-synthesized.
	assert.Equal(t, `df["Revenue"].sum()`, resp.Expression)
	assert.Empty(t, llm.promptsContaining("Expression:"))
	// Exactly one model call: the analytical prompt.
	assert.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Previous data result:\n150")
}

func TestAnalyticalWithoutPriorResult(t *testing.T) {
	llm := &scriptedLLM{}
	e := NewEngine(llm, testView(t))

	_, err := e.Ask(context.Background(), "why did revenue drop", "", conversation.NewLog())
	assert.ErrorIs(t, err, ErrNoPriorResult)
	// No model call is made.
	assert.Empty(t, llm.prompts)
}

func TestSchemaAnalysisFailureDegrades(t *testing.T) {
	// Model returns garbage for the JSON step; synthesis still runs with
	// no analysis block.
	llm := &garbageAnalysisLLM{expr: `df["Revenue"].sum()`}
	e := NewEngine(llm, testView(t))

	resp, err := e.Ask(context.Background(), "total revenue", "", conversation.NewLog())
	require.NoError(t, err)
	assert.Equal(t, `df["Revenue"].sum()`, resp.Expression)
	assert.Contains(t, llm.synthPrompt, "(no analysis available)")
}

type garbageAnalysisLLM struct {
	expr        string
	synthPrompt string
}

func (g *garbageAnalysisLLM) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Return ONLY a raw JSON object"):
		return "I think the columns are Revenue and Country.", nil
	case strings.Contains(prompt, "Expression:"):
		g.synthPrompt = prompt
		return g.expr, nil
	case strings.Contains(prompt, "Data Output:"):
		return "done", nil
	}
	return "", errors.New("unexpected prompt")
}

func TestRecomputeForcesComputationalPath(t *testing.T) {
	llm := &scriptedLLM{expressions: []string{`df["Revenue"].sum()`}}
	e := NewEngine(llm, testView(t))

	// The question contains an analytical keyword yet must be computed.
	resp, err := e.Recompute(context.Background(), "compare revenue by country", "")
	require.NoError(t, err)
	assert.Equal(t, `df["Revenue"].sum()`, resp.Expression)
	assert.NotEmpty(t, llm.promptsContaining("Expression:"))
}

func TestExplainExpression(t *testing.T) {
	llm := &explainLLM{}
	e := NewEngine(llm, testView(t))

	out, err := e.ExplainExpression(context.Background(), `df["Revenue"].sum()`)
	require.NoError(t, err)
	assert.Equal(t, "It adds up the Revenue column.", out)

	_, err = e.ExplainExpression(context.Background(), "  ")
	assert.Error(t, err)
}

type explainLLM struct{}

func (explainLLM) Complete(_ context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "not familiar with programming") {
		return "It adds up the Revenue column.", nil
	}
	return "", errors.New("unexpected prompt")
}
