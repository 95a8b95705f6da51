package intent

import (
	"fmt"
	"strings"

	"github.com/cognix/cognix/internal/schema"
)

// ViolationCode categorizes a validation failure. Codes are stable and
// fed back verbatim to the completion service during the repair round.
type ViolationCode string

const (
	CodeUnknownColumn  ViolationCode = "UNKNOWN_COLUMN"
	CodeBadAggregation ViolationCode = "BAD_AGGREGATION"
	CodeBadOperator    ViolationCode = "BAD_OPERATOR"
	CodeTypeMismatch   ViolationCode = "TYPE_MISMATCH"
	CodeOutOfDomain    ViolationCode = "OUT_OF_DOMAIN"
	CodeBadGrain       ViolationCode = "BAD_GRAIN"
	CodeBadSort        ViolationCode = "BAD_SORT"
	CodeBadLimit       ViolationCode = "BAD_LIMIT"
)

// Violation is one validation failure with enough context to repair it.
type Violation struct {
	Code    ViolationCode
	Column  string
	Message string
}

func (v Violation) String() string {
	if v.Column != "" {
		return fmt.Sprintf("%s: column %q: %s", v.Code, v.Column, v.Message)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// JoinViolations renders violations as a single semicolon-separated line.
func JoinViolations(vs []Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}

// allowedOps is the fixed operator set per column type.
var allowedOps = map[schema.ColumnType]map[Operator]bool{
	schema.Numeric: {
		OpEq: true, OpNe: true, OpGt: true, OpGe: true,
		OpLt: true, OpLe: true, OpIn: true, OpBetween: true,
	},
	schema.Categorical: {OpEq: true, OpNe: true, OpIn: true},
	schema.Text:        {OpEq: true, OpNe: true, OpIn: true},
	schema.Temporal: {
		OpEq: true, OpNe: true, OpGt: true, OpGe: true,
		OpLt: true, OpLe: true, OpBetween: true,
	},
}

// Validate checks every invariant a QueryIntent must hold against the
// schema: column existence, aggregation validity, operator sets, filter
// value typing, categorical domains, grain placement, sort and limit.
// Returns nil when the intent is valid.
func Validate(q QueryIntent, reg *schema.Registry) []Violation {
	var vs []Violation

	vs = append(vs, validateMeasure(q.Measure, reg)...)

	for _, d := range q.Dimensions {
		col, ok := reg.Column(d)
		if !ok {
			vs = append(vs, Violation{CodeUnknownColumn, d, "not in the dataset schema"})
			continue
		}
		if col.Type == schema.Numeric {
			vs = append(vs, Violation{CodeTypeMismatch, d, "numeric columns cannot be group-by dimensions"})
		}
	}

	for _, f := range q.Filters {
		vs = append(vs, validateFilter(f, reg)...)
	}

	if q.Time != nil {
		vs = append(vs, validateTime(*q.Time, reg)...)
	}

	if q.Sort != nil {
		vs = append(vs, validateSort(q, reg)...)
	}

	if q.Limit < 0 {
		vs = append(vs, Violation{CodeBadLimit, "", fmt.Sprintf("limit must be non-negative, got %d", q.Limit)})
	}

	return vs
}

func validateMeasure(m Measure, reg *schema.Registry) []Violation {
	switch m.Agg {
	case Sum, Count, Avg, Min, Max:
	default:
		return []Violation{{CodeBadAggregation, m.Column, fmt.Sprintf("unknown aggregation %q", m.Agg)}}
	}

	if m.Column == "" {
		if m.Agg == Count {
			return nil // bare count(*)
		}
		return []Violation{{CodeBadAggregation, "", fmt.Sprintf("%s requires a measure column", m.Agg)}}
	}

	col, ok := reg.Column(m.Column)
	if !ok {
		return []Violation{{CodeUnknownColumn, m.Column, "not in the dataset schema"}}
	}

	switch m.Agg {
	case Sum, Avg:
		if col.Type != schema.Numeric {
			return []Violation{{CodeBadAggregation, m.Column, fmt.Sprintf("%s requires a numeric column, %s is %s", m.Agg, m.Column, col.Type)}}
		}
	case Min, Max:
		if col.Type != schema.Numeric && col.Type != schema.Temporal {
			return []Violation{{CodeBadAggregation, m.Column, fmt.Sprintf("%s requires a numeric or temporal column, %s is %s", m.Agg, m.Column, col.Type)}}
		}
	}
	return nil
}

func validateFilter(f Filter, reg *schema.Registry) []Violation {
	col, ok := reg.Column(f.Column)
	if !ok {
		return []Violation{{CodeUnknownColumn, f.Column, "not in the dataset schema"}}
	}

	if !allowedOps[col.Type][f.Op] {
		return []Violation{{CodeBadOperator, f.Column, fmt.Sprintf("operator %q not allowed on %s column", f.Op, col.Type)}}
	}

	switch f.Op {
	case OpIn:
		vals, ok := f.Value.([]any)
		if !ok || len(vals) == 0 {
			return []Violation{{CodeTypeMismatch, f.Column, "in requires a non-empty list value"}}
		}
		var vs []Violation
		for _, v := range vals {
			vs = append(vs, checkScalar(f.Column, col, v)...)
		}
		return vs
	case OpBetween:
		vals, ok := f.Value.([]any)
		if !ok || len(vals) != 2 {
			return []Violation{{CodeTypeMismatch, f.Column, "between requires a two-element range value"}}
		}
		var vs []Violation
		for _, v := range vals {
			vs = append(vs, checkScalar(f.Column, col, v)...)
		}
		return vs
	default:
		return checkScalar(f.Column, col, f.Value)
	}
}

func checkScalar(name string, col schema.Column, v any) []Violation {
	switch col.Type {
	case schema.Numeric:
		switch v.(type) {
		case float64, int, int64:
			return nil
		}
		return []Violation{{CodeTypeMismatch, name, fmt.Sprintf("numeric column requires a number, got %T", v)}}
	case schema.Categorical:
		s, ok := v.(string)
		if !ok {
			return []Violation{{CodeTypeMismatch, name, fmt.Sprintf("categorical column requires a string, got %T", v)}}
		}
		if len(col.Domain) > 0 {
			for _, d := range col.Domain {
				if d == s {
					return nil
				}
			}
			return []Violation{{CodeOutOfDomain, name, fmt.Sprintf("%q is not in the column's domain", s)}}
		}
		return nil
	case schema.Temporal, schema.Text:
		if _, ok := v.(string); !ok {
			return []Violation{{CodeTypeMismatch, name, fmt.Sprintf("%s column requires a string, got %T", col.Type, v)}}
		}
		return nil
	}
	return nil
}

func validateTime(ts TimeSpec, reg *schema.Registry) []Violation {
	if !ValidGrain(ts.Grain) {
		return []Violation{{CodeBadGrain, ts.Column, fmt.Sprintf("unknown time grain %q", ts.Grain)}}
	}
	col, ok := reg.Column(ts.Column)
	if !ok {
		return []Violation{{CodeUnknownColumn, ts.Column, "not in the dataset schema"}}
	}
	if col.Type != schema.Temporal {
		return []Violation{{CodeBadGrain, ts.Column, fmt.Sprintf("time grain requires a temporal column, %s is %s", ts.Column, col.Type)}}
	}
	return nil
}

// validateSort checks the sort column against the query's output
// columns: the measure alias, a dimension, or the time bucket alias.
func validateSort(q QueryIntent, reg *schema.Registry) []Violation {
	s := *q.Sort
	if s.Direction != Asc && s.Direction != Desc {
		return []Violation{{CodeBadSort, s.Column, fmt.Sprintf("direction must be asc or desc, got %q", s.Direction)}}
	}
	if s.Column == q.Measure.Alias() {
		return nil
	}
	if q.Time != nil && (s.Column == q.Time.Column || s.Column == BucketAlias) {
		return nil
	}
	for _, d := range q.Dimensions {
		if s.Column == d {
			return nil
		}
	}
	return []Violation{{CodeBadSort, s.Column, "sort column is not an output column of the query"}}
}

// BucketAlias is the output column name of the time-truncation bucket.
const BucketAlias = "bucket"
