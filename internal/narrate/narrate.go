// Package narrate composes the short prose summary attached to a result
// bundle. The completion service writes it when available; otherwise a
// templated sentence built from the table itself stands in. Composition is
// best-effort and never fails the caller.
package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/viz"
)

// Completer generates text for a raw prompt.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// maxPromptRows caps how much of the table enters the prompt. The model
// summarizes shape and leaders, not the full result.
const maxPromptRows = 10

// Composer builds narratives. A nil completer skips straight to the
// deterministic fallback.
type Composer struct {
	completer Completer
	log       *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger attaches a logger for fallback diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(c *Composer) { c.log = log }
}

func New(completer Completer, opts ...Option) *Composer {
	c := &Composer{completer: completer, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose returns a one-or-two sentence narrative for the result. Every
// figure in a model-written narrative must come from the table; the prompt
// contains nothing else for it to draw on.
func (c *Composer) Compose(ctx context.Context, question string, q intent.QueryIntent, table engine.ResultTable, spec viz.Spec) string {
	if c.completer == nil {
		return Fallback(q, table)
	}

	text, err := c.completer.Generate(ctx, buildPrompt(question, q, table, spec))
	if err != nil {
		c.log.Warn("narrative generation failed, using fallback", "err", err)
		return Fallback(q, table)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Fallback(q, table)
	}
	return text
}

func buildPrompt(question string, q intent.QueryIntent, table engine.ResultTable, spec viz.Spec) string {
	var b strings.Builder
	b.WriteString("You are a business analytics assistant. Write one or two short sentences summarizing the result below. Use only values present in the data; do not invent numbers.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Query: %s\n", q.String())
	fmt.Fprintf(&b, "Chart: %s\n", spec.Kind)
	fmt.Fprintf(&b, "Rows: %d", table.RowCount)
	if table.Truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString("\n\nData:\n")
	b.WriteString(strings.Join(table.Columns, " | "))
	b.WriteString("\n")
	for i, row := range table.Rows {
		if i >= maxPromptRows {
			fmt.Fprintf(&b, "... %d more rows\n", table.RowCount-maxPromptRows)
			break
		}
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = formatCell(cell)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	b.WriteString("\nSummary:")
	return b.String()
}

// Fallback is the deterministic narrative used when the completion service
// is unavailable. Built purely from table statistics.
func Fallback(q intent.QueryIntent, table engine.ResultTable) string {
	if table.RowCount == 0 {
		return "The query returned no rows."
	}

	alias := q.Measure.Alias()
	if table.RowCount == 1 && len(q.Dimensions) == 0 && q.Time == nil {
		if idx := table.Column(alias); idx >= 0 {
			return fmt.Sprintf("%s is %s.", titleCase(describeMeasure(q.Measure)), formatCell(table.Rows[0][idx]))
		}
		return "Result contains 1 row."
	}

	s := fmt.Sprintf("Result contains %d rows", table.RowCount)
	if row, dim, ok := topRow(q, table); ok {
		s += fmt.Sprintf("; top value is %s for %s %s", formatCell(row.value), dim, formatCell(row.label))
	}
	return s + "."
}

type top struct {
	label any
	value any
}

// topRow finds the row with the largest measure value and the grouping
// column identifying it.
func topRow(q intent.QueryIntent, table engine.ResultTable) (top, string, bool) {
	mIdx := table.Column(q.Measure.Alias())
	if mIdx < 0 {
		return top{}, "", false
	}

	dim := ""
	if len(q.Dimensions) > 0 {
		dim = q.Dimensions[0]
	} else if q.Time != nil {
		dim = intent.BucketAlias
	}
	dIdx := table.Column(dim)
	if dIdx < 0 {
		return top{}, "", false
	}

	best := -1
	bestVal := 0.0
	for i, row := range table.Rows {
		v, ok := row[mIdx].(float64)
		if !ok {
			continue
		}
		if best < 0 || v > bestVal {
			best, bestVal = i, v
		}
	}
	if best < 0 {
		return top{}, "", false
	}
	return top{label: table.Rows[best][dIdx], value: table.Rows[best][mIdx]}, dim, true
}

func describeMeasure(m intent.Measure) string {
	switch m.Agg {
	case intent.Count:
		if m.Column == "" {
			return "the record count"
		}
		return "the count of " + m.Column
	case intent.Sum:
		return "total " + m.Column
	case intent.Avg:
		return "average " + m.Column
	case intent.Min:
		return "minimum " + m.Column
	case intent.Max:
		return "maximum " + m.Column
	}
	return m.Column
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.2f", x)
	case string:
		return x
	default:
		return fmt.Sprintf("%v", x)
	}
}
