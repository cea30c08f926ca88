package query

import (
	"fmt"
	"regexp"
	"strings"
)

// expressionGuide documents the surface the synthesis model must target.
// The evaluator accepts nothing outside this grammar.
const expressionGuide = `The expression language supports:
- the table bound as df; column access df["Column Name"]
- row filtering with boolean masks: df[df["Country"] == "UK"], combinable with & and |
- string predicates on columns: .contains("x"), .startswith("x"), .endswith("x")
- grouping: df.groupby("Col")["Value"].sum() (also mean, min, max, median, count, std, var)
- series/scalar math (+ - * /), comparisons, round(n), abs(), idxmax(), idxmin()
- sorting and slicing: df.sort_values("Col", false).head(5)
- map literals for comparisons: {"comparison": <expr>, "analysis": <expr>}
Date columns are stored as strings; match them with == or .contains("Jan").`

const synthesisInstructions = `1. Convert the question to a single executable expression over the table.
2. For simple questions, return just the numerical calculation.
3. For comparison-style questions the final value must be a map with keys:
   - "comparison": the numerical comparison
   - "analysis": contextual information
4. The expression must be a complete solution to the question.
5. PRINT ONLY THE EXPRESSION.
6. Do not quote the expression.
7. Use 'df' as the table name in your expression.`

// schemaAnalysisPrompt asks for the strict JSON breakdown of the question.
func schemaAnalysisPrompt(schemaText, question string) string {
	return fmt.Sprintf(`Analyze this question and map it to the available columns in the dataset.
Remember:
1. The data may contain investment/costs, profit and loss/revenue information. It might not be the name of a column but a group within a column. Identify this.
2. Units, teams and countries may appear as groups within a column rather than as columns.
3. Date information may be a full date or just month and year. Identify this.
4. Use the schema to decide the right filters.

Question: %s

Available columns and their properties:
%s

Please identify:
1. Metric columns (numeric values we need to calculate)
2. Filter columns (what we're filtering by)
3. Group by columns (what we're grouping by)
4. Time periods (if any)
5. Aggregation function needed (sum, average, etc.)

Return ONLY a raw JSON object without any formatting, quotes, or backticks:
{
    "metric_columns": [],
    "filter_columns": {"column_name": "filter_value"},
    "group_by_columns": [],
    "time_period": "",
    "aggregation": ""
}`, question, schemaText)
}

// synthesisPrompt asks for exactly one expression string.
func synthesisPrompt(columns []string, analysisJSON, question string) string {
	analysis := analysisJSON
	if analysis == "" {
		analysis = "(no analysis available)"
	}
	return fmt.Sprintf(`You are working with a table of financial data.
The name of the table is df.
Remember! the column names may not be straightforward.
These are the columns, choose the right column name from here: [%s]
Here's an analysis of the question that breaks it into logical parts: %s

%s

Follow these instructions:
%s

Question: %s

Expression:`, strings.Join(columns, ", "), analysis, expressionGuide, synthesisInstructions, question)
}

// responsePrompt turns the computation output into an analyst-ready answer.
func responsePrompt(question, output string) string {
	return fmt.Sprintf(`Given an input question, provide the answer and if required a detailed analysis of this financial data.
Question: %s

Data Output: %s

1. Put the numerical answer or table of numbers in a proper table format like a financial analyst would like to see.
2. For comparative questions:
   - Identify the highest/lowest values
   - Identify what unit/month/country/value drives the answer
Response: `, question, output)
}

// analyticalPrompt interprets an already-retrieved result in a business
// context.
func analyticalPrompt(context, previousResult, question string) string {
	return fmt.Sprintf(`You are a financial analyst reviewing data that has already been retrieved.

%s

Previous data result:
%s

Current analytical question: %s

Please provide a thoughtful analysis of these results that:
1. Interprets the numbers in a business context
2. Identifies any patterns, trends, or anomalies
3. Explains possible reasons for the observed data
4. Provides strategic implications or recommendations if appropriate

Focus ONLY on analyzing and interpreting the data that has already been retrieved.`, context, previousResult, question)
}

// explainPrompt translates a stored expression into analyst English.
func explainPrompt(expression string) string {
	return fmt.Sprintf(`Explain to a financial analyst who is not familiar with programming
what the following tabular expression is doing, in spreadsheet terms.
List all the columns it picked to aggregate, all the filtering and aggregations it performs and the values used.
Expression: %s`, expression)
}

// describePrompt produces an objective dataset description at ingest.
func describePrompt(name, schemaText, samples string) string {
	return fmt.Sprintf(`You're analyzing a dataset named %q with the following information:

Schema:
%s

Sample data (first rows):
%s

Please provide a concise title for this dataset, followed by a brief description
of what this dataset contains. Include what appear to be the main metrics, columns, information.

Do not make any judgements/observations of your own. Stay objective. No need for insights.

Keep your response under 250 words and make it helpful for a financial analyst.`, name, schemaText, samples)
}

var codeFenceRe = regexp.MustCompile("```[a-zA-Z]*\n?|\n```|`")

// stripCodeFences removes markdown code fencing the model sometimes wraps
// around structured output.
func stripCodeFences(s string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(s, ""))
}
