// Package harness runs end-to-end pipeline scenarios defined in YAML.
// Each scenario gets a fresh in-memory store, seeded rows, a scripted
// completion service, and a deterministic clock, so runs are reproducible
// and assert on real pipeline output rather than manufactured state.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognix/cognix/internal/artifact"
	"github.com/cognix/cognix/internal/compile"
	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/narrate"
	"github.com/cognix/cognix/internal/pipeline"
	"github.com/cognix/cognix/internal/resolver"
	"github.com/cognix/cognix/internal/schema"
	"github.com/cognix/cognix/internal/store"
	"github.com/cognix/cognix/internal/viz"
)

// Scenario is one YAML-defined end-to-end case: dataset rows, the scripted
// completion responses, and a sequence of questions with expectations.
type Scenario struct {
	Name      string           `yaml:"name"`
	Responses []string         `yaml:"responses"`
	Rows      []map[string]any `yaml:"rows"`
	Steps     []Step           `yaml:"steps"`
}

// Step asks one question and checks the outcome.
type Step struct {
	Question string `yaml:"question"`
	Expect   Expect `yaml:"expect"`
}

// Expect declares what a step's outcome must look like. Nil pointer fields
// are unchecked.
type Expect struct {
	Viz               string  `yaml:"viz"`
	RowCount          *int    `yaml:"row_count"`
	CacheHit          *bool   `yaml:"cache_hit"`
	EngineCalls       *int    `yaml:"engine_calls"`
	FailKind          string  `yaml:"fail_kind"`
	NarrativeContains string  `yaml:"narrative_contains"`
	FirstCell         *string `yaml:"first_cell"`
	Fingerprint       string  `yaml:"fingerprint"` // "same_as_first" checks against step 0's bundle
}

// Result collects per-step outcomes and assertion failures.
type Result struct {
	Outcomes []Outcome
	Errors   []string
}

// Outcome is what one step actually produced.
type Outcome struct {
	Bundle   *artifact.Bundle
	CacheHit bool
	FailKind pipeline.FailureKind
}

// Passed reports whether every assertion held.
func (r *Result) Passed() bool { return len(r.Errors) == 0 }

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" || len(s.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: name and steps are required", path)
	}
	return &s, nil
}

// countingExecutor wraps the engine so scenarios can assert on how often
// the engine actually ran.
type countingExecutor struct {
	inner *engine.Executor
	calls atomic.Int64
}

func (c *countingExecutor) Execute(ctx context.Context, cq compile.CompiledQuery) (engine.ResultTable, error) {
	c.calls.Add(1)
	return c.inner.Execute(ctx, cq)
}

// scriptedCompleter replays scenario responses in order, repeating the
// last one once drained.
type scriptedCompleter struct {
	responses []string
	next      atomic.Int64
}

func (s *scriptedCompleter) Complete(_ context.Context, _ resolver.Request) (string, error) {
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scenario queued no responses")
	}
	i := int(s.next.Add(1)) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

// Run executes a scenario in isolation and evaluates its expectations.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	reg, err := retailRegistry()
	if err != nil {
		return nil, err
	}
	if err := seedRows(st, reg, scenario.Rows); err != nil {
		return nil, err
	}

	ex := &countingExecutor{inner: engine.New(st)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	p := pipeline.New(
		reg,
		resolver.New(&scriptedCompleter{responses: scenario.Responses}, resolver.WithLogger(logger)),
		ex,
		viz.NewSelector(),
		narrate.New(nil),
		artifact.NewCache(st),
		pipeline.WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC) }),
		pipeline.WithLogger(logger),
	)

	result := &Result{}
	ctx := context.Background()
	for i, step := range scenario.Steps {
		res, err := p.Run(ctx, step.Question)
		outcome := Outcome{}
		if err != nil {
			outcome.FailKind = pipeline.KindOf(err)
		} else {
			outcome.Bundle = res.Bundle
			outcome.CacheHit = res.CacheHit
		}
		result.Outcomes = append(result.Outcomes, outcome)
		evaluate(result, i, step.Expect, outcome, int(ex.calls.Load()))
	}
	return result, nil
}

func evaluate(result *Result, step int, expect Expect, outcome Outcome, engineCalls int) {
	if expect.FailKind != "" {
		if string(outcome.FailKind) != expect.FailKind {
			result.addError("step %d: expected failure kind %q, got %q", step, expect.FailKind, outcome.FailKind)
		}
		return
	}
	if outcome.FailKind != "" {
		result.addError("step %d: unexpected failure %q", step, outcome.FailKind)
		return
	}

	b := outcome.Bundle
	if expect.Viz != "" && string(b.Viz.Kind) != expect.Viz {
		result.addError("step %d: expected viz %q, got %q", step, expect.Viz, b.Viz.Kind)
	}
	if expect.RowCount != nil && b.Table.RowCount != *expect.RowCount {
		result.addError("step %d: expected %d rows, got %d", step, *expect.RowCount, b.Table.RowCount)
	}
	if expect.CacheHit != nil && outcome.CacheHit != *expect.CacheHit {
		result.addError("step %d: expected cache_hit=%v, got %v", step, *expect.CacheHit, outcome.CacheHit)
	}
	if expect.EngineCalls != nil && engineCalls != *expect.EngineCalls {
		result.addError("step %d: expected %d engine call(s), saw %d", step, *expect.EngineCalls, engineCalls)
	}
	if expect.NarrativeContains != "" && !strings.Contains(b.Narrative, expect.NarrativeContains) {
		result.addError("step %d: narrative %q does not contain %q", step, b.Narrative, expect.NarrativeContains)
	}
	if expect.FirstCell != nil {
		if len(b.Table.Rows) == 0 || len(b.Table.Rows[0]) == 0 {
			result.addError("step %d: table empty, expected first cell %q", step, *expect.FirstCell)
		} else if got := fmt.Sprintf("%v", b.Table.Rows[0][0]); got != *expect.FirstCell {
			result.addError("step %d: expected first cell %q, got %q", step, *expect.FirstCell, got)
		}
	}
	if expect.Fingerprint == "same_as_first" {
		first := result.Outcomes[0]
		if first.Bundle == nil {
			result.addError("step %d: no first bundle to compare fingerprints against", step)
		} else if b.Fingerprint != first.Bundle.Fingerprint {
			result.addError("step %d: fingerprint %s differs from first %s", step, b.Fingerprint, first.Bundle.Fingerprint)
		}
	}
}

// retailRegistry is the fixed schema every scenario's rows conform to.
func retailRegistry() (*schema.Registry, error) {
	return schema.New("superstore", "superstore", "v1-scenario", []schema.Column{
		{Name: "sales", Type: schema.Numeric},
		{Name: "profit", Type: schema.Numeric},
		{Name: "region", Type: schema.Categorical, Domain: []string{"West", "East", "Central", "South", "North"}},
		{Name: "category", Type: schema.Categorical},
		{Name: "order_date", Type: schema.Temporal},
		{Name: "customer", Type: schema.Text},
	})
}

func seedRows(st *store.Store, reg *schema.Registry, rows []map[string]any) error {
	ctx := context.Background()
	cols := reg.Columns()

	var defs, names, marks []string
	for _, col := range cols {
		typ := "TEXT"
		if col.Type == schema.Numeric {
			typ = "REAL"
		}
		defs = append(defs, fmt.Sprintf("%q %s", col.Name, typ))
		names = append(names, fmt.Sprintf("%q", col.Name))
		marks = append(marks, "?")
	}
	create := fmt.Sprintf("CREATE TABLE %q (%s)", reg.Table(), strings.Join(defs, ", "))
	if _, err := st.Exec(ctx, create); err != nil {
		return fmt.Errorf("create scenario table: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		reg.Table(), strings.Join(names, ", "), strings.Join(marks, ", "))
	for i, row := range rows {
		args := make([]any, len(cols))
		for j, col := range cols {
			args[j] = row[col.Name]
		}
		if _, err := st.Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("seed row %d: %w", i, err)
		}
	}
	return nil
}
