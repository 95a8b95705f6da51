// Package engine executes compiled queries against the embedded
// analytical store and returns typed result tables.
package engine

import (
	"context"
	"time"

	"github.com/cognix/cognix/internal/compile"
	"github.com/cognix/cognix/internal/store"
)

// DefaultRowCap is the hard ceiling on returned rows. It is a safety
// limit distinct from any user-requested LIMIT, which the compiler has
// already applied inside the query.
const DefaultRowCap = 10000

// ResultTable is an ordered, typed query result. Cells are normalized
// to string, float64, bool, or nil so the table round-trips through
// JSON without type drift.
type ResultTable struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"rowCount"`
	Truncated bool     `json:"truncated"`
	ElapsedMs int64    `json:"elapsedMs"`
}

// Column returns the index of the named column, or -1.
func (t ResultTable) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Executor runs compiled queries with a row cap.
type Executor struct {
	store  *store.Store
	rowCap int
}

// Option configures an Executor.
type Option func(*Executor)

// WithRowCap overrides the hard row ceiling. Values below 1 keep the
// default.
func WithRowCap(cap int) Option {
	return func(e *Executor) {
		if cap > 0 {
			e.rowCap = cap
		}
	}
}

// New creates an Executor over the analytical store.
func New(s *store.Store, opts ...Option) *Executor {
	e := &Executor{store: s, rowCap: DefaultRowCap}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the compiled query. The engine never retries; faults are
// returned as *Error and retry policy belongs to the caller.
//
// Truncation is applied after the query's own sort and limit: the
// engine reads at most rowCap rows and flags the table when the
// underlying result had more.
func (e *Executor) Execute(ctx context.Context, cq compile.CompiledQuery) (ResultTable, error) {
	start := time.Now()

	rows, err := e.store.Query(ctx, cq.SQL, cq.Params...)
	if err != nil {
		return ResultTable{}, &Error{Op: "query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ResultTable{}, &Error{Op: "columns", Err: err}
	}

	table := ResultTable{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(table.Rows) >= e.rowCap {
			table.Truncated = true
			break
		}
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultTable{}, &Error{Op: "scan", Err: err}
		}
		for i, c := range cells {
			cells[i] = normalizeCell(c)
		}
		table.Rows = append(table.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return ResultTable{}, &Error{Op: "iterate", Err: err}
	}

	table.RowCount = len(table.Rows)
	table.ElapsedMs = time.Since(start).Milliseconds()
	return table, nil
}

// normalizeCell folds driver types into the four cell types the table
// guarantees. Integer aggregates become float64 so a serialized table
// deserializes to an equal value.
func normalizeCell(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case int64:
		return float64(val)
	case float64, string, bool:
		return val
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return val
	}
}
