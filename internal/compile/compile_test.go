package compile

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.New("superstore", "superstore", "", []schema.Column{
		{Name: "sales", Type: schema.Numeric},
		{Name: "profit", Type: schema.Numeric},
		{Name: "region", Type: schema.Categorical, Domain: []string{"West", "East", "Central", "South", "North"}},
		{Name: "category", Type: schema.Categorical},
		{Name: "order_date", Type: schema.Temporal},
	})
	require.NoError(t, err)
	return reg
}

// snapshot renders a CompiledQuery for golden comparison.
func snapshot(t *testing.T, cq CompiledQuery) []byte {
	t.Helper()
	params, err := json.Marshal(cq.Params)
	require.NoError(t, err)
	return []byte(cq.SQL + "\n-- params: " + string(params) + "\n")
}

func TestCompileGolden(t *testing.T) {
	reg := testRegistry(t)
	g := goldie.New(t)

	cases := []struct {
		name string
		q    intent.QueryIntent
	}{
		{
			name: "total_sales",
			q:    intent.QueryIntent{Measure: intent.Measure{Column: "sales", Agg: intent.Sum}},
		},
		{
			name: "sales_by_region",
			q: intent.QueryIntent{
				Measure:    intent.Measure{Column: "sales", Agg: intent.Sum},
				Dimensions: []string{"region"},
			},
		},
		{
			name: "monthly_sales",
			q: intent.QueryIntent{
				Measure: intent.Measure{Column: "sales", Agg: intent.Sum},
				Time:    &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
			},
		},
		{
			name: "filtered_top5",
			q: intent.QueryIntent{
				Measure:    intent.Measure{Column: "sales", Agg: intent.Sum},
				Dimensions: []string{"category"},
				Filters: []intent.Filter{
					{Column: "region", Op: intent.OpEq, Value: "West"},
					{Column: "sales", Op: intent.OpGt, Value: float64(100)},
				},
				Sort:  &intent.Sort{Column: "sales", Direction: intent.Desc},
				Limit: 5,
			},
		},
		{
			name: "quarter_grouped",
			q: intent.QueryIntent{
				Measure:    intent.Measure{Column: "sales", Agg: intent.Sum},
				Dimensions: []string{"region"},
				Filters: []intent.Filter{
					{Column: "region", Op: intent.OpIn, Value: []any{"West", "East"}},
				},
				Time: &intent.TimeSpec{Column: "order_date", Grain: intent.GrainQuarter},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cq, err := Compile(tc.q, reg)
			require.NoError(t, err)
			g.Assert(t, tc.name, snapshot(t, cq))
		})
	}
}

func TestCompileDeterministic(t *testing.T) {
	reg := testRegistry(t)
	q := intent.QueryIntent{
		Measure:    intent.Measure{Column: "sales", Agg: intent.Sum},
		Dimensions: []string{"region"},
		Filters:    []intent.Filter{{Column: "region", Op: intent.OpEq, Value: "West"}},
	}

	cq1, err := Compile(q, reg)
	require.NoError(t, err)
	cq2, err := Compile(q, reg)
	require.NoError(t, err)

	assert.Equal(t, cq1, cq2, "equal intents must compile identically")
}

func TestCompileSortOnTimeColumnUsesBucket(t *testing.T) {
	reg := testRegistry(t)
	q := intent.QueryIntent{
		Measure: intent.Measure{Column: "sales", Agg: intent.Sum},
		Time:    &intent.TimeSpec{Column: "order_date", Grain: intent.GrainMonth},
		Sort:    &intent.Sort{Column: "order_date", Direction: intent.Desc},
	}

	cq, err := Compile(q, reg)
	require.NoError(t, err)
	assert.Contains(t, cq.SQL, `ORDER BY "bucket" DESC`)
	assert.NotContains(t, cq.SQL, `ORDER BY "order_date"`)
}

func TestCompileBareCount(t *testing.T) {
	reg := testRegistry(t)
	cq, err := Compile(intent.QueryIntent{Measure: intent.Measure{Agg: intent.Count}}, reg)
	require.NoError(t, err)
	assert.Contains(t, cq.SQL, `COUNT(*) AS "count"`)
}

func TestCompileBetween(t *testing.T) {
	reg := testRegistry(t)
	q := intent.QueryIntent{
		Measure: intent.Measure{Column: "sales", Agg: intent.Sum},
		Filters: []intent.Filter{
			{Column: "order_date", Op: intent.OpBetween, Value: []any{"2024-01-01", "2024-06-30"}},
		},
	}
	cq, err := Compile(q, reg)
	require.NoError(t, err)
	assert.Contains(t, cq.SQL, `"order_date" BETWEEN ? AND ?`)
	assert.Equal(t, []any{"2024-01-01", "2024-06-30"}, cq.Params)
}

// An intent referencing an unknown column must be rejected even when it
// reaches the compiler directly, bypassing the resolver's validation.
func TestCompileRejectsUnknownColumn(t *testing.T) {
	reg := testRegistry(t)
	q := intent.QueryIntent{Measure: intent.Measure{Column: "revenue", Agg: intent.Sum}}

	_, err := Compile(q, reg)
	require.Error(t, err)
	assert.True(t, IsCompilationError(err))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Violations, 1)
	assert.Equal(t, intent.CodeUnknownColumn, ce.Violations[0].Code)
}

func TestCompileRejectsBadOperator(t *testing.T) {
	reg := testRegistry(t)
	q := intent.QueryIntent{
		Measure: intent.Measure{Column: "sales", Agg: intent.Sum},
		Filters: []intent.Filter{{Column: "region", Op: intent.OpGt, Value: "West"}},
	}

	_, err := Compile(q, reg)
	assert.True(t, IsCompilationError(err))
}
