package intent

import (
	"fmt"
	"sort"

	"github.com/cognix/cognix/internal/canonical"
)

// Fingerprint computes the stable cache key for a (schema version,
// intent) pair. Semantically identical intents that differ only in
// filter or dimension ordering collide on the same fingerprint.
//
// Confidence and Reasoning are metadata, not semantics, and are
// excluded from the hash.
func Fingerprint(schemaVersion string, q QueryIntent) (string, error) {
	obj, err := canonicalMap(schemaVersion, q)
	if err != nil {
		return "", err
	}
	h, err := canonical.HashObject(canonical.DomainIntent, obj)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return h, nil
}

// canonicalMap builds the hashed representation. Filters are sorted by
// (column, op, serialized value); dimensions are sorted by name. The
// stored intent keeps the user's ordering, which drives axis encoding.
// Optional fields are omitted rather than encoded as null.
func canonicalMap(schemaVersion string, q QueryIntent) (map[string]any, error) {
	obj := map[string]any{
		"schema_version": schemaVersion,
		"measure": map[string]any{
			"column": q.Measure.Column,
			"agg":    string(q.Measure.Agg),
		},
	}

	dims := make([]string, len(q.Dimensions))
	copy(dims, q.Dimensions)
	sort.Strings(dims)
	dimVals := make([]any, len(dims))
	for i, d := range dims {
		dimVals[i] = d
	}
	obj["dimensions"] = dimVals

	filters := make([]map[string]any, 0, len(q.Filters))
	keys := make([]string, 0, len(q.Filters))
	for _, f := range q.Filters {
		val, err := canonicalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", f.Column, err)
		}
		fm := map[string]any{
			"column": f.Column,
			"op":     string(f.Op),
			"value":  val,
		}
		key, err := canonical.MarshalCanonical(fm)
		if err != nil {
			return nil, fmt.Errorf("filter on %q: %w", f.Column, err)
		}
		filters = append(filters, fm)
		keys = append(keys, string(key))
	}
	sort.Sort(&byKey{keys: keys, filters: filters})
	filterVals := make([]any, len(filters))
	for i, f := range filters {
		filterVals[i] = f
	}
	obj["filters"] = filterVals

	if q.Time != nil {
		obj["time"] = map[string]any{
			"column": q.Time.Column,
			"grain":  string(q.Time.Grain),
		}
	}
	if q.Sort != nil {
		obj["sort"] = map[string]any{
			"column":    q.Sort.Column,
			"direction": string(q.Sort.Direction),
		}
	}
	if q.Limit > 0 {
		obj["limit"] = int64(q.Limit)
	}

	return obj, nil
}

// canonicalValue normalizes a filter value for hashing. Integers fold
// into float64 so that 5 and 5.0 hash identically.
func canonicalValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case bool:
		return val, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			c, err := canonicalValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported filter value type %T", v)
	}
}

// byKey sorts filters by their canonical serialization.
type byKey struct {
	keys    []string
	filters []map[string]any
}

func (s *byKey) Len() int           { return len(s.keys) }
func (s *byKey) Less(i, j int) bool { return s.keys[i] < s.keys[j] }
func (s *byKey) Swap(i, j int) {
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
	s.filters[i], s.filters[j] = s.filters[j], s.filters[i]
}
