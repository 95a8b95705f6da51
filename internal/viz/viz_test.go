package viz

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/intent"
)

func sumSales() intent.Measure {
	return intent.Measure{Column: "sales", Agg: intent.Sum}
}

func oneRow(columns []string, row []any) engine.ResultTable {
	return engine.ResultTable{Columns: columns, Rows: [][]any{row}, RowCount: 1}
}

func groupedRows(column string, n int) engine.ResultTable {
	t := engine.ResultTable{Columns: []string{column, "sales"}, RowCount: n}
	for i := 0; i < n; i++ {
		t.Rows = append(t.Rows, []any{string(rune('A' + i)), float64(i * 10)})
	}
	return t
}

func TestSelectSingleValue(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{Measure: sumSales()}

	spec := s.Select(q, oneRow([]string{"sales"}, []any{545.5}))

	assert.Equal(t, SingleValue, spec.Kind)
	assert.Equal(t, map[string]string{"value": "sales"}, spec.Encoding)
	assert.Equal(t, "Total sales", spec.Title)
}

func TestSelectLineForTimeSeries(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{
		Measure: sumSales(),
		Time:    &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
	}
	table := engine.ResultTable{
		Columns:  []string{"bucket", "sales"},
		Rows:     [][]any{{"2024-01", 100.0}, {"2024-02", 200.0}},
		RowCount: 2,
	}

	spec := s.Select(q, table)

	assert.Equal(t, Line, spec.Kind)
	assert.Equal(t, "bucket", spec.Encoding["x"])
	assert.Equal(t, "sales", spec.Encoding["value"])
	assert.Equal(t, "Total sales by month", spec.Title)
}

func TestSelectBarForSmallCategorical(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{Measure: sumSales(), Dimensions: []string{"region"}}

	spec := s.Select(q, groupedRows("region", 5))

	assert.Equal(t, Bar, spec.Kind)
	assert.Equal(t, "region", spec.Encoding["category"])
	assert.Equal(t, "sales", spec.Encoding["value"])
}

func TestSelectTableAboveCategoryCutoff(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{Measure: sumSales(), Dimensions: []string{"region"}}

	spec := s.Select(q, groupedRows("region", 13))

	assert.Equal(t, Table, spec.Kind)
}

func TestSelectCutoffIsConfigurable(t *testing.T) {
	s := NewSelector(WithCategoryCutoff(3))
	q := intent.QueryIntent{Measure: sumSales(), Dimensions: []string{"region"}}

	assert.Equal(t, Table, s.Select(q, groupedRows("region", 5)).Kind)
	assert.Equal(t, Bar, s.Select(q, groupedRows("region", 3)).Kind)
}

func TestSelectGroupedBarTimePlusCategory(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{
		Measure:    sumSales(),
		Dimensions: []string{"region"},
		Time:       &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
	}
	table := engine.ResultTable{
		Columns:  []string{"bucket", "region", "sales"},
		Rows:     [][]any{{"2024-01", "West", 100.0}},
		RowCount: 1,
	}

	spec := s.Select(q, table)

	assert.Equal(t, GroupedBar, spec.Kind)
	assert.Equal(t, "bucket", spec.Encoding["category"])
	assert.Equal(t, "region", spec.Encoding["series"])
}

func TestSelectGroupedBarTwoCategories(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{Measure: sumSales(), Dimensions: []string{"region", "category"}}
	table := engine.ResultTable{
		Columns:  []string{"region", "category", "sales"},
		Rows:     [][]any{{"West", "Furniture", 100.0}},
		RowCount: 1,
	}

	spec := s.Select(q, table)

	assert.Equal(t, GroupedBar, spec.Kind)
	assert.Equal(t, "region", spec.Encoding["category"])
	assert.Equal(t, "category", spec.Encoding["series"])
}

func TestSelectTableFallback(t *testing.T) {
	s := NewSelector()

	// Three dimensions match no chart rule.
	q := intent.QueryIntent{Measure: sumSales(), Dimensions: []string{"region", "category", "customer"}}
	table := engine.ResultTable{
		Columns:  []string{"region", "category", "customer", "sales"},
		Rows:     [][]any{{"West", "Furniture", "Acme", 100.0}},
		RowCount: 1,
	}

	spec := s.Select(q, table)

	assert.Equal(t, Table, spec.Kind)
	assert.Equal(t, "region", spec.Encoding["column_0"])
}

func TestSelectMinMaxGroupedFallsBackToTable(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{
		Measure:    intent.Measure{Column: "sales", Agg: intent.Max},
		Dimensions: []string{"region"},
	}

	spec := s.Select(q, groupedRows("region", 5))

	assert.Equal(t, Table, spec.Kind)
}

func TestSelectIsDeterministic(t *testing.T) {
	s := NewSelector()
	q := intent.QueryIntent{Measure: sumSales(), Dimensions: []string{"region"}}
	table := groupedRows("region", 4)

	first := s.Select(q, table)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Select(q, table))
	}
}

func TestDistinctRespectsDuplicates(t *testing.T) {
	table := engine.ResultTable{
		Columns:  []string{"region", "sales"},
		Rows:     [][]any{{"West", 1.0}, {"West", 2.0}, {"East", 3.0}},
		RowCount: 3,
	}
	assert.Equal(t, 2, distinct(table, "region"))
}

func TestSelectGolden(t *testing.T) {
	s := NewSelector()
	g := goldie.New(t)

	cases := []struct {
		name  string
		q     intent.QueryIntent
		table engine.ResultTable
	}{
		{
			name: "line_time_series",
			q: intent.QueryIntent{
				Measure: sumSales(),
				Time:    &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
			},
			table: engine.ResultTable{
				Columns:  []string{"bucket", "sales"},
				Rows:     [][]any{{"2024-01", 100.0}},
				RowCount: 1,
			},
		},
		{
			name: "grouped_bar_time_and_category",
			q: intent.QueryIntent{
				Measure:    sumSales(),
				Dimensions: []string{"region"},
				Time:       &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
			},
			table: engine.ResultTable{
				Columns:  []string{"bucket", "region", "sales"},
				Rows:     [][]any{{"2024-01", "West", 100.0}},
				RowCount: 1,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := s.Select(tc.q, tc.table)
			data, err := json.MarshalIndent(spec, "", "  ")
			require.NoError(t, err)
			g.Assert(t, tc.name, append(data, '\n'))
		})
	}
}

func TestTitleComposition(t *testing.T) {
	q := intent.QueryIntent{
		Measure:    intent.Measure{Agg: intent.Count},
		Dimensions: []string{"ship_mode"},
	}
	assert.Equal(t, "Count of records by ship mode", title(q))

	q = intent.QueryIntent{
		Measure:    intent.Measure{Column: "profit", Agg: intent.Avg},
		Dimensions: []string{"region"},
		Time:       &intent.TimeSpec{Column: "order_date", Grain: intent.GrainQuarter},
	}
	assert.Equal(t, "Average profit by quarter and region", title(q))
}
