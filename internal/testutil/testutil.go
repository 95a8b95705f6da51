// Package testutil holds shared fixtures: a scripted completion service
// and a canned retail schema matching the sample dataset.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cognix/cognix/internal/resolver"
	"github.com/cognix/cognix/internal/schema"
)

// ScriptedCompleter returns queued responses in order and records every
// request it saw. Safe for concurrent use.
type ScriptedCompleter struct {
	mu        sync.Mutex
	responses []string
	err       error
	requests  []resolver.Request
}

// Script queues responses to return in order. After the queue drains the
// last response repeats.
func Script(responses ...string) *ScriptedCompleter {
	return &ScriptedCompleter{responses: responses}
}

// Failing returns a completer whose every call fails with err.
func Failing(err error) *ScriptedCompleter {
	return &ScriptedCompleter{err: err}
}

func (s *ScriptedCompleter) Complete(_ context.Context, req resolver.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", fmt.Errorf("scripted completer: no responses queued")
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

// Calls returns how many times Complete was invoked.
func (s *ScriptedCompleter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every recorded request.
func (s *ScriptedCompleter) Requests() []resolver.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]resolver.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RetailSchema builds the registry used across the end-to-end tests:
// a superstore-style sales table.
func RetailSchema(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.New("superstore", "superstore", "v1-test", []schema.Column{
		{Name: "sales", Type: schema.Numeric},
		{Name: "profit", Type: schema.Numeric},
		{Name: "region", Type: schema.Categorical, Domain: []string{"West", "East", "Central", "South", "North"}},
		{Name: "category", Type: schema.Categorical},
		{Name: "order_date", Type: schema.Temporal},
		{Name: "customer", Type: schema.Text},
	})
	require.NoError(t, err)
	return reg
}

// FixedClock returns a clock function pinned to a known instant, for
// deterministic bundle timestamps.
func FixedClock() func() time.Time {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return at }
}
