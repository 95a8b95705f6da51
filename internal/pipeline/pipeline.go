// Package pipeline drives one question through resolution, compilation,
// execution, visualization, narration, and caching as a strict single-pass
// state machine. Each step owns exactly one failure kind; the only loop in
// the whole flow is the resolver's internal repair round.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cognix/cognix/internal/artifact"
	"github.com/cognix/cognix/internal/compile"
	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/narrate"
	"github.com/cognix/cognix/internal/resolver"
	"github.com/cognix/cognix/internal/schema"
	"github.com/cognix/cognix/internal/viz"
)

// State tags where a request currently is. Done and Failed are terminal.
type State string

const (
	StateResolving   State = "resolving"
	StateCompiling   State = "compiling"
	StateExecuting   State = "executing"
	StateVisualizing State = "visualizing"
	StateComposing   State = "composing"
	StateCaching     State = "caching"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Executor runs a compiled query. Satisfied by engine.Executor; tests wrap
// it to count invocations.
type Executor interface {
	Execute(ctx context.Context, cq compile.CompiledQuery) (engine.ResultTable, error)
}

// Result is a successful terminal outcome. CacheHit marks the shortcut
// path that skipped compilation and execution entirely. Degraded marks a
// bundle that was computed but could not be persisted.
type Result struct {
	RequestID string
	Bundle    *artifact.Bundle
	CacheHit  bool
	Degraded  bool
}

// Pipeline wires the steps together. All collaborators are injected; the
// registry is read-only and shared across requests.
type Pipeline struct {
	reg      *schema.Registry
	resolver *resolver.Resolver
	executor Executor
	selector *viz.Selector
	composer *narrate.Composer
	cache    *artifact.Cache
	clock    func() time.Time
	log      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides bundle timestamping, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithLogger attaches a logger for per-state transitions.
func WithLogger(log *slog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

func New(reg *schema.Registry, r *resolver.Resolver, ex Executor, sel *viz.Selector, comp *narrate.Composer, cache *artifact.Cache, opts ...Option) *Pipeline {
	p := &Pipeline{
		reg:      reg,
		resolver: r,
		executor: ex,
		selector: sel,
		composer: comp,
		cache:    cache,
		clock:    time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run takes a raw question through to a bundle or a typed *Failure. Each
// request is an independent unit of work; the artifact cache is the only
// shared mutable state, and its store is idempotent, so concurrent runs
// of the same question are safe and leave exactly one persisted bundle.
func (p *Pipeline) Run(ctx context.Context, question string) (*Result, error) {
	id := uuid.Must(uuid.NewV7()).String()
	log := p.log.With("request", id)

	log.Info("request started", "state", StateResolving, "question", question)
	q, err := p.resolver.Resolve(ctx, p.reg, question)
	if err != nil {
		return nil, p.fail(log, id, StateResolving, KindIntentUnresolvable, err)
	}

	fingerprint, err := artifact.FingerprintOf(p.reg.Version(), q)
	if err != nil {
		return nil, p.fail(log, id, StateResolving, KindCache, err)
	}

	// Cache shortcut: a hit ends the request without touching the
	// compiler or the engine. Lookup failures degrade to a miss.
	cached, err := p.cache.Lookup(ctx, fingerprint)
	if err != nil {
		log.Warn("cache lookup failed, recomputing", "err", err)
	}
	if cached != nil {
		log.Info("request served from cache", "state", StateDone, "fingerprint", fingerprint)
		return &Result{RequestID: id, Bundle: cached, CacheHit: true}, nil
	}

	log.Debug("state transition", "state", StateCompiling, "intent", q.String())
	cq, err := compile.Compile(q, p.reg)
	if err != nil {
		return nil, p.fail(log, id, StateCompiling, KindCompilation, err)
	}

	log.Debug("state transition", "state", StateExecuting)
	table, err := p.executor.Execute(ctx, cq)
	if err != nil {
		return nil, p.fail(log, id, StateExecuting, KindExecution, err)
	}

	log.Debug("state transition", "state", StateVisualizing)
	spec := p.selector.Select(q, table)

	log.Debug("state transition", "state", StateComposing)
	narrative := p.composer.Compose(ctx, question, q, table, spec)

	bundle := &artifact.Bundle{
		Fingerprint:   fingerprint,
		SchemaVersion: p.reg.Version(),
		Question:      question,
		Intent:        q,
		Query:         cq,
		Table:         table,
		Viz:           spec,
		Narrative:     narrative,
		CreatedAt:     p.clock().UTC(),
	}

	// A failed store is degraded mode, not a failure: the caller still
	// gets the bundle it asked for.
	log.Debug("state transition", "state", StateCaching, "fingerprint", fingerprint)
	degraded := false
	if err := p.cache.Store(ctx, bundle); err != nil {
		log.Warn("cache store failed, returning uncached bundle", "err", err)
		degraded = true
	}

	log.Info("request completed", "state", StateDone, "fingerprint", fingerprint, "rows", table.RowCount, "viz", spec.Kind)
	return &Result{RequestID: id, Bundle: bundle, Degraded: degraded}, nil
}

func (p *Pipeline) fail(log *slog.Logger, id string, at State, kind FailureKind, err error) *Failure {
	log.Error("request failed", "state", StateFailed, "at", at, "kind", kind, "err", err)
	return &Failure{RequestID: id, At: at, Kind: kind, Err: err}
}

// Registry exposes the schema the pipeline was built with.
func (p *Pipeline) Registry() *schema.Registry { return p.reg }

// Fingerprint computes the cache key a question's intent would get, given
// a validated intent. Exposed for callers that inspect the cache directly.
func (p *Pipeline) Fingerprint(q intent.QueryIntent) (string, error) {
	return artifact.FingerprintOf(p.reg.Version(), q)
}
