package narrate

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/viz"
)

type stubCompleter struct {
	text    string
	err     error
	prompts []string
}

func (s *stubCompleter) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

func sumByRegion() intent.QueryIntent {
	return intent.QueryIntent{
		Measure:    intent.Measure{Column: "sales", Agg: intent.Sum},
		Dimensions: []string{"region"},
	}
}

func regionTable() engine.ResultTable {
	return engine.ResultTable{
		Columns:  []string{"region", "sales"},
		Rows:     [][]any{{"West", 320.5}, {"East", 175.0}},
		RowCount: 2,
	}
}

func TestComposeUsesCompleter(t *testing.T) {
	c := New(&stubCompleter{text: "West leads with 320.50 in sales."})

	got := c.Compose(context.Background(), "Sales by region", sumByRegion(), regionTable(), viz.Spec{Kind: viz.Bar})

	assert.Equal(t, "West leads with 320.50 in sales.", got)
}

func TestComposePromptCarriesOnlyTableData(t *testing.T) {
	stub := &stubCompleter{text: "ok"}
	c := New(stub)

	c.Compose(context.Background(), "Sales by region", sumByRegion(), regionTable(), viz.Spec{Kind: viz.Bar})

	prompt := stub.prompts[0]
	assert.Contains(t, prompt, "Sales by region")
	assert.Contains(t, prompt, "West | 320.50")
	assert.Contains(t, prompt, "do not invent numbers")
}

func TestComposeFallsBackOnError(t *testing.T) {
	c := New(&stubCompleter{err: fmt.Errorf("unavailable")})

	got := c.Compose(context.Background(), "Sales by region", sumByRegion(), regionTable(), viz.Spec{Kind: viz.Bar})

	assert.Equal(t, "Result contains 2 rows; top value is 320.50 for region West.", got)
}

func TestComposeFallsBackOnEmptyResponse(t *testing.T) {
	c := New(&stubCompleter{text: "   "})

	got := c.Compose(context.Background(), "Sales by region", sumByRegion(), regionTable(), viz.Spec{Kind: viz.Bar})

	assert.True(t, strings.HasPrefix(got, "Result contains 2 rows"))
}

func TestComposeNilCompleter(t *testing.T) {
	c := New(nil)

	got := c.Compose(context.Background(), "Sales by region", sumByRegion(), regionTable(), viz.Spec{Kind: viz.Bar})

	assert.True(t, strings.HasPrefix(got, "Result contains 2 rows"))
}

func TestFallbackSingleValue(t *testing.T) {
	q := intent.QueryIntent{Measure: intent.Measure{Column: "sales", Agg: intent.Sum}}
	table := engine.ResultTable{Columns: []string{"sales"}, Rows: [][]any{{545.5}}, RowCount: 1}

	assert.Equal(t, "Total sales is 545.50.", Fallback(q, table))
}

func TestFallbackEmptyResult(t *testing.T) {
	assert.Equal(t, "The query returned no rows.", Fallback(sumByRegion(), engine.ResultTable{Columns: []string{"region", "sales"}}))
}

func TestFallbackTimeSeriesUsesBucket(t *testing.T) {
	q := intent.QueryIntent{
		Measure: intent.Measure{Column: "sales", Agg: intent.Sum},
		Time:    &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
	}
	table := engine.ResultTable{
		Columns:  []string{"bucket", "sales"},
		Rows:     [][]any{{"2024-01", 100.0}, {"2024-02", 250.0}},
		RowCount: 2,
	}

	assert.Equal(t, "Result contains 2 rows; top value is 250 for bucket 2024-02.", Fallback(q, table))
}

func TestPromptTruncatesLongTables(t *testing.T) {
	stub := &stubCompleter{text: "ok"}
	c := New(stub)

	table := engine.ResultTable{Columns: []string{"region", "sales"}}
	for i := 0; i < 25; i++ {
		table.Rows = append(table.Rows, []any{fmt.Sprintf("r%d", i), float64(i)})
	}
	table.RowCount = 25

	c.Compose(context.Background(), "q", sumByRegion(), table, viz.Spec{Kind: viz.Table})

	assert.Contains(t, stub.prompts[0], "... 15 more rows")
	assert.NotContains(t, stub.prompts[0], "r20 |")
}
