package resolver

import (
	"fmt"
	"strings"

	"github.com/cognix/cognix/internal/schema"
)

// SchemaSummary renders the registry as prompt text: column names, types,
// and declared category domains. This is all the completion service ever
// sees of the dataset; raw rows never enter a prompt.
func SchemaSummary(reg *schema.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset %q, columns:\n", reg.Name())
	for _, col := range reg.Columns() {
		fmt.Fprintf(&b, "- %s (%s)", col.Name, col.Type)
		if len(col.Domain) > 0 {
			fmt.Fprintf(&b, " values: %s", strings.Join(col.Domain, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

const promptRules = `You convert analytics questions into a structured query intent.

RULES:
1. Use only column names from the schema above.
2. Aggregations: sum, avg, min, max (numeric columns), count (any column or bare row count with an empty column).
3. Operators: eq, ne, gt, ge, lt, le, in, between. Use "in" with an array value and "between" with a two-element array.
4. Group-by dimensions must be categorical, temporal, or text columns, never numeric.
5. If the question mentions a trend or "over time", set "time" with a temporal column and a grain (day, week, month, quarter, year).
6. "Top N" questions get a "sort" (desc on the measure) and a "limit".
7. Set "confidence" (0.0 to 1.0) for how clear the question is and a one-line "reasoning".

OUTPUT: a single JSON object, no prose, no markdown fences:
{
  "measure": {"column": "sales", "agg": "sum"},
  "dimensions": ["region"],
  "filters": [{"column": "region", "op": "eq", "value": "West"}],
  "time": {"column": "order_date", "grain": "month"},
  "sort": {"column": "sales", "direction": "desc"},
  "limit": 5,
  "confidence": 0.95,
  "reasoning": "why this intent matches the question"
}
Omit "time", "sort", and "limit" when the question does not call for them.

EXAMPLES:

Question: "Show total sales"
{"measure": {"column": "sales", "agg": "sum"}, "dimensions": [], "filters": [], "confidence": 0.99, "reasoning": "single aggregate, no grouping"}

Question: "Monthly sales trend"
{"measure": {"column": "sales", "agg": "sum"}, "dimensions": [], "filters": [], "time": {"column": "order_date", "grain": "month"}, "confidence": 0.95, "reasoning": "time series at month grain"}

Question: "Top 5 categories by profit"
{"measure": {"column": "profit", "agg": "sum"}, "dimensions": ["category"], "filters": [], "sort": {"column": "profit", "direction": "desc"}, "limit": 5, "confidence": 0.98, "reasoning": "ranked categories"}

Question: "Average sales in the West region"
{"measure": {"column": "sales", "agg": "avg"}, "dimensions": [], "filters": [{"column": "region", "op": "eq", "value": "West"}], "confidence": 0.9, "reasoning": "filtered aggregate"}`

// BuildPrompt assembles the full prompt for one completion call.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.SchemaSummary)
	b.WriteString("\n")
	b.WriteString(promptRules)
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(req.Question)
	if req.RepairFeedback != "" {
		b.WriteString("\n\n")
		b.WriteString(req.RepairFeedback)
	}
	b.WriteString("\n\nRespond with valid JSON only:")
	return b.String()
}
