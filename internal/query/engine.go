// Package query orchestrates one natural-language question against a pivot
// view: intent classification, schema-aware expression synthesis, sandboxed
// execution with bounded retries, and response synthesis.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pivotlens/pivotlens/internal/ai"
	"github.com/pivotlens/pivotlens/internal/conversation"
	"github.com/pivotlens/pivotlens/internal/eval"
	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/schema"
)

// ErrNoPriorResult is returned when an analytical question arrives before
// any computed answer exists. No model call is made in that case.
var ErrNoPriorResult = errors.New("no previous results to analyze")

const maxAttempts = 3

// SchemaAnalysis is the model's structured guess at which columns a
// question references. A parse failure leaves it nil and computation
// proceeds without it.
type SchemaAnalysis struct {
	MetricColumns  []string       `json:"metric_columns"`
	FilterColumns  map[string]any `json:"filter_columns"`
	GroupByColumns []string       `json:"group_by_columns"`
	TimePeriod     string         `json:"time_period"`
	Aggregation    string         `json:"aggregation"`
}

// Response is the orchestrator's answer to one question.
type Response struct {
	Answer     string
	Expression string
}

// Engine handles questions for exactly one pivot view. The schema
// description is computed once and cached; it is the only representation of
// the data ever sent to the model.
type Engine struct {
	llm    ai.Completer
	view   *pivot.View
	schema *schema.Schema
}

// NewEngine builds the per-view query engine.
func NewEngine(llm ai.Completer, view *pivot.View) *Engine {
	return &Engine{
		llm:    llm,
		view:   view,
		schema: schema.Describe(view.Result),
	}
}

// View returns the pivot view this engine is bound to.
func (e *Engine) View() *pivot.View { return e.view }

// Ask answers one question. The conversation log is read for analytical
// routing; appending the result is the caller's job.
func (e *Engine) Ask(ctx context.Context, question, convContext string, log *conversation.Log) (*Response, error) {
	if ClassifyIntent(question) == Analytical {
		return e.interpret(ctx, question, convContext, log)
	}
	return e.compute(ctx, question, convContext)
}

// interpret answers an analytical question from the most recent assistant
// result. Interpretation never produces new code; the prior expression is
// carried through.
func (e *Engine) interpret(ctx context.Context, question, convContext string, log *conversation.Log) (*Response, error) {
	prev, ok := log.LastAssistant()
	if !ok {
		return nil, ErrNoPriorResult
	}
	analysis, err := e.llm.Complete(ctx, analyticalPrompt(convContext, prev.Content, question))
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}
	return &Response{
		Answer:     "**Analysis of Previous Results:**\n" + analysis,
		Expression: prev.Expression,
	}, nil
}

// contextForAttempt is the attempt-indexed degrade policy: the second
// attempt drops the full conversation for a minimal framing to reduce
// prompt drift.
func contextForAttempt(attempt int, full, question string) string {
	if attempt >= 2 && full != "" {
		return fmt.Sprintf("Analyzing pivot table. Question: %s", question)
	}
	return full
}

// compute runs the computational path with bounded retries: schema
// analysis, expression synthesis, sandboxed execution, response synthesis.
func (e *Engine) compute(ctx context.Context, question, convContext string) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := e.computeOnce(ctx, question, contextForAttempt(attempt, convContext, question))
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, lastErr
}

// Recompute forces the computational path regardless of how the question
// would classify. Used when re-asking after an unsatisfying answer.
func (e *Engine) Recompute(ctx context.Context, question, convContext string) (*Response, error) {
	return e.compute(ctx, question, convContext)
}

func (e *Engine) computeOnce(ctx context.Context, question, convContext string) (*Response, error) {
	finalQuestion := question
	if convContext != "" {
		finalQuestion = fmt.Sprintf("%s\n\nCurrent question: %s\n\nProvide a clear, concise answer.", convContext, question)
	}

	analysisJSON := e.analyzeSchema(ctx, finalQuestion)

	expr, err := e.synthesize(ctx, analysisJSON, finalQuestion)
	if err != nil {
		return nil, err
	}

	output, err := eval.Execute(e.view.Result, expr)
	if err != nil {
		// Converted to a result string so the response layer sees a value
		// or an error message, never a fault; the attempt still fails.
		return nil, fmt.Errorf("evaluate expression %q: %w", expr, err)
	}

	answer, err := e.llm.Complete(ctx, responsePrompt(question, output))
	if err != nil {
		return nil, fmt.Errorf("response synthesis: %w", err)
	}
	return &Response{Answer: answer, Expression: expr}, nil
}

// analyzeSchema asks the model to map the question onto columns. Malformed
// JSON degrades to absence rather than failing the attempt.
func (e *Engine) analyzeSchema(ctx context.Context, question string) string {
	raw, err := e.llm.Complete(ctx, schemaAnalysisPrompt(e.schema.Render(), question))
	if err != nil {
		return ""
	}
	cleaned := stripCodeFences(raw)
	var sa SchemaAnalysis
	if err := json.Unmarshal([]byte(cleaned), &sa); err != nil {
		return ""
	}
	// Re-marshal so the synthesis prompt always sees canonical JSON.
	b, err := json.Marshal(sa)
	if err != nil {
		return ""
	}
	return string(b)
}

func (e *Engine) synthesize(ctx context.Context, analysisJSON, question string) (string, error) {
	raw, err := e.llm.Complete(ctx, synthesisPrompt(e.view.Result.Columns(), analysisJSON, question))
	if err != nil {
		return "", fmt.Errorf("synthesize expression: %w", err)
	}
	expr := stripCodeFences(raw)
	if expr == "" {
		return "", errors.New("model returned an empty expression")
	}
	return expr, nil
}

// ExplainExpression translates a stored expression to analyst English.
func (e *Engine) ExplainExpression(ctx context.Context, expression string) (string, error) {
	if strings.TrimSpace(expression) == "" {
		return "", errors.New("no expression to explain")
	}
	return e.llm.Complete(ctx, explainPrompt(expression))
}

// DescribeTable generates an objective description of a freshly ingested
// table from its schema and first rows. It is best-effort; callers fall
// back to a stock description on error.
func DescribeTable(ctx context.Context, llm ai.Completer, name string, s *schema.Schema, sampleRows [][]string, columns []string) (string, error) {
	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	for _, row := range sampleRows {
		b.WriteString("\n")
		b.WriteString(strings.Join(row, " | "))
	}
	out, err := llm.Complete(ctx, describePrompt(name, s.Render(), b.String()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
