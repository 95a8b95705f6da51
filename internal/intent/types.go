// Package intent defines the structured query intent extracted from a
// natural-language question, the validation gate that binds it to the
// schema, and the canonical fingerprint used for caching.
//
// The completion service is an untrusted input source: nothing in an
// intent is believed until Validate has checked it against the Registry.
package intent

import "fmt"

// Aggregation names the function applied to the measure column.
type Aggregation string

const (
	Sum   Aggregation = "sum"
	Count Aggregation = "count"
	Avg   Aggregation = "avg"
	Min   Aggregation = "min"
	Max   Aggregation = "max"
)

// Operator names a filter comparison. The allowed set per column type
// is fixed and checked during validation, not at compile time.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNe      Operator = "ne"
	OpGt      Operator = "gt"
	OpGe      Operator = "ge"
	OpLt      Operator = "lt"
	OpLe      Operator = "le"
	OpIn      Operator = "in"
	OpBetween Operator = "between"
)

// Grain is the time-bucketing granularity for a temporal column.
type Grain string

const (
	GrainDay     Grain = "day"
	GrainWeek    Grain = "week"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
)

// ValidGrain reports whether g is a known time grain.
func ValidGrain(g Grain) bool {
	switch g {
	case GrainDay, GrainWeek, GrainMonth, GrainQuarter, GrainYear:
		return true
	}
	return false
}

// Direction orders a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Measure is the aggregated projection of the query.
// Column may be empty only for a bare row count.
type Measure struct {
	Column string      `json:"column"`
	Agg    Aggregation `json:"agg"`
}

// Alias returns the output column name the measure is projected under.
func (m Measure) Alias() string {
	if m.Agg == Count && m.Column == "" {
		return "count"
	}
	return m.Column
}

// Filter is one predicate clause. Value holds a JSON-shaped value:
// float64 for numeric columns, string for categorical/text/temporal,
// []any for the in and between operators.
type Filter struct {
	Column string   `json:"column"`
	Op     Operator `json:"op"`
	Value  any      `json:"value"`
}

// Sort orders the result by one output column.
type Sort struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// TimeSpec applies a date-truncation transform to a temporal column.
type TimeSpec struct {
	Column string `json:"column"`
	Grain  Grain  `json:"grain"`
}

// QueryIntent is the structured representation of what the user wants
// measured, filtered, and grouped. Immutable after validation.
//
// Confidence and Reasoning are advisory metadata from the completion
// service; they are excluded from canonicalization and the fingerprint.
type QueryIntent struct {
	Measure    Measure  `json:"measure"`
	Dimensions []string `json:"dimensions"`
	Filters    []Filter `json:"filters"`
	Time       *TimeSpec `json:"time,omitempty"`
	Sort       *Sort     `json:"sort,omitempty"`
	Limit      int       `json:"limit,omitempty"`

	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// String renders a compact one-line description for logs.
func (q QueryIntent) String() string {
	s := fmt.Sprintf("%s(%s)", q.Measure.Agg, q.Measure.Column)
	if q.Time != nil {
		s += fmt.Sprintf(" by %s(%s)", q.Time.Grain, q.Time.Column)
	}
	for _, d := range q.Dimensions {
		s += " by " + d
	}
	if len(q.Filters) > 0 {
		s += fmt.Sprintf(" where %d filter(s)", len(q.Filters))
	}
	if q.Limit > 0 {
		s += fmt.Sprintf(" limit %d", q.Limit)
	}
	return s
}
