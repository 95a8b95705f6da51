// Package viz chooses a chart for a resolved query result. Selection is a
// pure function of the intent and the result table shape, so the same query
// always renders the same way.
package viz

import (
	"fmt"
	"strings"

	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/intent"
)

// Kind identifies a chart family the front-end knows how to render.
type Kind string

const (
	SingleValue Kind = "single-value"
	Bar         Kind = "bar"
	Line        Kind = "line"
	Pie         Kind = "pie"
	Table       Kind = "table"
	GroupedBar  Kind = "grouped-bar"
)

// Spec is everything a renderer needs: the chart kind and which result
// column feeds which visual role.
type Spec struct {
	Kind     Kind              `json:"kind"`
	Encoding map[string]string `json:"encoding"`
	Title    string            `json:"title"`
	Reason   string            `json:"reason"`
}

// DefaultCategoryCutoff is the largest category count a bar chart stays
// readable at; past it we fall back to a table.
const DefaultCategoryCutoff = 12

// Selector applies the chart decision policy.
type Selector struct {
	cutoff int
}

// Option configures a Selector.
type Option func(*Selector)

// WithCategoryCutoff overrides the bar-vs-table cardinality threshold.
func WithCategoryCutoff(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.cutoff = n
		}
	}
}

func NewSelector(opts ...Option) *Selector {
	s := &Selector{cutoff: DefaultCategoryCutoff}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select maps a (query intent, result table) pair to exactly one Spec. The
// policy is evaluated in order and always terminates at the table fallback,
// so Select never fails.
func (s *Selector) Select(q intent.QueryIntent, table engine.ResultTable) Spec {
	hasTime := q.Time != nil
	dims := len(q.Dimensions)

	switch {
	case !hasTime && dims == 0 && table.RowCount == 1:
		return Spec{
			Kind:     SingleValue,
			Encoding: map[string]string{"value": q.Measure.Alias()},
			Title:    title(q),
			Reason:   "single aggregate value",
		}
	case hasTime && dims == 0:
		return Spec{
			Kind: Line,
			Encoding: map[string]string{
				"x":     intent.BucketAlias,
				"value": q.Measure.Alias(),
			},
			Title:  title(q),
			Reason: "time series shown as a line to expose the trend",
		}
	case !hasTime && dims == 1:
		if aggregable(q.Measure.Agg) {
			if n := distinct(table, q.Dimensions[0]); n <= s.cutoff {
				return Spec{
					Kind: Bar,
					Encoding: map[string]string{
						"category": q.Dimensions[0],
						"value":    q.Measure.Alias(),
					},
					Title:  title(q),
					Reason: "categorical comparison over a small number of groups",
				}
			}
			return Spec{
				Kind:     Table,
				Encoding: tableEncoding(table),
				Title:    title(q),
				Reason:   "too many categories for a readable chart",
			}
		}
	case (hasTime && dims == 1) || (!hasTime && dims == 2):
		enc := map[string]string{"value": q.Measure.Alias()}
		if hasTime {
			enc["category"] = intent.BucketAlias
			enc["series"] = q.Dimensions[0]
		} else {
			enc["category"] = q.Dimensions[0]
			enc["series"] = q.Dimensions[1]
		}
		return Spec{
			Kind:     GroupedBar,
			Encoding: enc,
			Title:    title(q),
			Reason:   "two grouping dimensions compared side by side",
		}
	}

	return Spec{
		Kind:     Table,
		Encoding: tableEncoding(table),
		Title:    title(q),
		Reason:   "no chart policy matched; tables render any shape",
	}
}

func aggregable(a intent.Aggregation) bool {
	switch a {
	case intent.Count, intent.Sum, intent.Avg:
		return true
	}
	return false
}

// distinct counts unique values in one result column. With a single group-by
// dimension this equals the row count, but a user limit may have trimmed the
// table, so we count what is actually there.
func distinct(table engine.ResultTable, column string) int {
	idx := table.Column(column)
	if idx < 0 {
		return table.RowCount
	}
	seen := make(map[any]struct{}, table.RowCount)
	for _, row := range table.Rows {
		seen[row[idx]] = struct{}{}
	}
	return len(seen)
}

func tableEncoding(table engine.ResultTable) map[string]string {
	enc := make(map[string]string, len(table.Columns))
	for i, col := range table.Columns {
		enc[fmt.Sprintf("column_%d", i)] = col
	}
	return enc
}

func title(q intent.QueryIntent) string {
	var b strings.Builder
	switch q.Measure.Agg {
	case intent.Count:
		if q.Measure.Column == "" {
			b.WriteString("Count of records")
		} else {
			fmt.Fprintf(&b, "Count of %s", humanize(q.Measure.Column))
		}
	case intent.Sum:
		fmt.Fprintf(&b, "Total %s", humanize(q.Measure.Column))
	case intent.Avg:
		fmt.Fprintf(&b, "Average %s", humanize(q.Measure.Column))
	case intent.Min:
		fmt.Fprintf(&b, "Minimum %s", humanize(q.Measure.Column))
	case intent.Max:
		fmt.Fprintf(&b, "Maximum %s", humanize(q.Measure.Column))
	default:
		b.WriteString(humanize(q.Measure.Column))
	}
	if q.Time != nil {
		fmt.Fprintf(&b, " by %s", q.Time.Grain)
	}
	for i, d := range q.Dimensions {
		if i == 0 && q.Time == nil {
			fmt.Fprintf(&b, " by %s", humanize(d))
		} else {
			fmt.Fprintf(&b, " and %s", humanize(d))
		}
	}
	return b.String()
}

func humanize(column string) string {
	return strings.ReplaceAll(column, "_", " ")
}
