// Package compile turns a validated QueryIntent into an executable SQL
// query for the embedded analytical store. Compilation is a pure
// function: equal intents always compile to equal CompiledQueries.
//
// All values are parameterized, never interpolated, and every query
// carries a deterministic trailing ORDER BY so repeated executions
// return rows in the same order.
package compile

import (
	"fmt"
	"strings"

	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/schema"
)

// CompiledQuery is the opaque executable form of a QueryIntent.
type CompiledQuery struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// Compile maps a validated intent onto the dataset table. The intent is
// re-validated defensively; a violation here means a caller bypassed
// the resolver's validation gate and is reported as a CompilationError,
// a developer-facing bug signal rather than a user-facing error.
func Compile(q intent.QueryIntent, reg *schema.Registry) (CompiledQuery, error) {
	if vs := intent.Validate(q, reg); len(vs) > 0 {
		return CompiledQuery{}, &Error{
			Message:    "intent failed invariants that upstream validation guarantees",
			Violations: vs,
		}
	}

	var (
		selects  []string
		groupBys []string
		params   []any
	)

	if q.Time != nil {
		selects = append(selects, bucketExpr(*q.Time)+` AS "`+intent.BucketAlias+`"`)
		groupBys = append(groupBys, quote(intent.BucketAlias))
	}
	for _, d := range q.Dimensions {
		selects = append(selects, quote(d))
		groupBys = append(groupBys, quote(d))
	}
	selects = append(selects, measureExpr(q.Measure))

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selects, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quote(reg.Table()))

	if len(q.Filters) > 0 {
		clauses := make([]string, 0, len(q.Filters))
		for _, f := range q.Filters {
			sql, p := predicate(f)
			clauses = append(clauses, sql)
			params = append(params, p...)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}

	if len(groupBys) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBys, ", "))
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(orderBy(q, groupBys), ", "))

	if q.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}

	if params == nil {
		params = []any{}
	}
	return CompiledQuery{SQL: b.String(), Params: params}, nil
}

// bucketExpr renders the date-truncation transform for a time grain.
// Buckets are text labels whose lexical order matches chronological
// order, so they group and sort correctly without a date type.
func bucketExpr(ts intent.TimeSpec) string {
	col := quote(ts.Column)
	switch ts.Grain {
	case intent.GrainDay:
		return fmt.Sprintf(`strftime('%%Y-%%m-%%d', %s)`, col)
	case intent.GrainWeek:
		return fmt.Sprintf(`strftime('%%Y-W%%W', %s)`, col)
	case intent.GrainMonth:
		return fmt.Sprintf(`strftime('%%Y-%%m', %s)`, col)
	case intent.GrainQuarter:
		return fmt.Sprintf(`strftime('%%Y', %s) || '-Q' || ((CAST(strftime('%%m', %s) AS INTEGER) + 2) / 3)`, col, col)
	case intent.GrainYear:
		return fmt.Sprintf(`strftime('%%Y', %s)`, col)
	}
	// Unreachable after validation; render something harmless.
	return fmt.Sprintf(`strftime('%%Y-%%m-%%d', %s)`, col)
}

func measureExpr(m intent.Measure) string {
	if m.Agg == intent.Count {
		if m.Column == "" {
			return `COUNT(*) AS "count"`
		}
		return fmt.Sprintf(`COUNT(%s) AS %s`, quote(m.Column), quote(m.Column))
	}
	fn := strings.ToUpper(string(m.Agg))
	return fmt.Sprintf(`%s(%s) AS %s`, fn, quote(m.Column), quote(m.Column))
}

func predicate(f intent.Filter) (string, []any) {
	col := quote(f.Column)
	switch f.Op {
	case intent.OpEq:
		return col + " = ?", []any{f.Value}
	case intent.OpNe:
		return col + " != ?", []any{f.Value}
	case intent.OpGt:
		return col + " > ?", []any{f.Value}
	case intent.OpGe:
		return col + " >= ?", []any{f.Value}
	case intent.OpLt:
		return col + " < ?", []any{f.Value}
	case intent.OpLe:
		return col + " <= ?", []any{f.Value}
	case intent.OpIn:
		vals := f.Value.([]any)
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")
		return col + " IN (" + placeholders + ")", vals
	case intent.OpBetween:
		vals := f.Value.([]any)
		return col + " BETWEEN ? AND ?", vals
	}
	// Unreachable after validation.
	return "1 = 1", nil
}

// orderBy builds the ORDER BY list: the user's sort (or a default),
// then every remaining group key as a stable tiebreaker.
func orderBy(q intent.QueryIntent, groupBys []string) []string {
	var clauses []string
	covered := map[string]bool{}

	switch {
	case q.Sort != nil:
		dir := "ASC"
		if q.Sort.Direction == intent.Desc {
			dir = "DESC"
		}
		col := q.Sort.Column
		// A sort on the raw temporal column means the bucket.
		if q.Time != nil && col == q.Time.Column {
			col = intent.BucketAlias
		}
		clauses = append(clauses, quote(col)+" "+dir)
		covered[quote(col)] = true
	case q.Time != nil:
		// Time series read chronologically by default.
		clauses = append(clauses, quote(intent.BucketAlias)+" ASC")
		covered[quote(intent.BucketAlias)] = true
	case len(groupBys) > 0:
		// Grouped results read largest-first by default.
		clauses = append(clauses, quote(q.Measure.Alias())+" DESC")
	}

	// Stable tiebreakers over the remaining group keys.
	for _, g := range groupBys {
		if !covered[g] {
			clauses = append(clauses, g+" ASC COLLATE BINARY")
		}
	}

	if len(clauses) == 0 {
		// Ungrouped single-row aggregate; order is trivially stable but
		// the clause is kept so every query shape carries one.
		clauses = append(clauses, "1 ASC")
	}
	return clauses
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
