// Package artifact persists resolved query bundles keyed by the intent
// fingerprint. The cache is append-only with at-most-one-write semantics:
// concurrent stores of the same fingerprint race harmlessly, and the first
// writer's bundle is the one everyone reads.
package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cognix/cognix/internal/compile"
	"github.com/cognix/cognix/internal/engine"
	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/viz"
)

// Bundle is the full persisted outcome of one resolved query: everything a
// front-end needs to re-render without recomputation.
type Bundle struct {
	Fingerprint   string                `json:"fingerprint"`
	SchemaVersion string                `json:"schema_version"`
	Question      string                `json:"question,omitempty"`
	Intent        intent.QueryIntent    `json:"intent"`
	Query         compile.CompiledQuery `json:"query"`
	Table         engine.ResultTable    `json:"table"`
	Viz           viz.Spec              `json:"viz"`
	Narrative     string                `json:"narrative"`
	CreatedAt     time.Time             `json:"created_at"`
}

// Marshal serializes the bundle for storage. encoding/json emits struct
// fields in declaration order, so the encoding is stable for a given build.
func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle %s: %w", b.Fingerprint, err)
	}
	return data, nil
}

// Unmarshal restores a bundle from its stored form.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}
	return &b, nil
}
