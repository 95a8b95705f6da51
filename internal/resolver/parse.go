package resolver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cognix/cognix/internal/intent"
)

// ParseIntent decodes model output into a QueryIntent. Models wrap JSON in
// markdown fences or lead-in prose often enough that we cut to the outermost
// object before decoding. The result is unvalidated.
func ParseIntent(raw string) (intent.QueryIntent, error) {
	body := extractJSON(raw)
	if body == "" {
		return intent.QueryIntent{}, fmt.Errorf("no JSON object in response")
	}

	var q intent.QueryIntent
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		// Retry tolerantly: unknown fields alone should not sink a
		// proposal the validator could still accept.
		if err2 := json.Unmarshal([]byte(body), &q); err2 != nil {
			return intent.QueryIntent{}, fmt.Errorf("decode intent: %w", err2)
		}
	}
	return q, nil
}

// extractJSON returns the outermost {...} span of s, stripping markdown
// fences and surrounding prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.Index(s, "\n"); i >= 0 {
			s = s[i+1:]
		}
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
