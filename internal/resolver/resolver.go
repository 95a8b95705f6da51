// Package resolver turns a free-text analytics question into a validated
// QueryIntent. The completion service proposes; the schema disposes: every
// proposal runs through intent.Validate, and an invalid one gets a single
// repair round with the violations quoted back before the resolver gives up.
package resolver

import (
	"context"
	"log/slog"

	"github.com/cognix/cognix/internal/intent"
	"github.com/cognix/cognix/internal/schema"
)

// Request carries one completion call's inputs. RepairFeedback is empty on
// the first attempt and holds the validator's findings on a repair round.
type Request struct {
	Question       string
	SchemaSummary  string
	RepairFeedback string
}

// Completer produces model text for a request. Implementations wrap an
// external completion service; tests substitute scripted responses.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// DefaultRepairAttempts is how many times an invalid proposal is sent back
// for correction before resolution fails.
const DefaultRepairAttempts = 1

// Resolver drives the propose-validate-repair loop.
type Resolver struct {
	completer Completer
	attempts  int
	log       *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRepairAttempts overrides the repair round count.
func WithRepairAttempts(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.attempts = n
		}
	}
}

// WithLogger attaches a logger for per-attempt diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

func New(c Completer, opts ...Option) *Resolver {
	r := &Resolver{
		completer: c,
		attempts:  DefaultRepairAttempts,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve converts question into a QueryIntent valid against reg. The
// returned error is an *UnresolvableError when the service's proposals
// could not be made valid within the allowed repair rounds; transport failures
// pass through unwrapped inside it as well, since the caller's recourse
// is the same either way.
func (r *Resolver) Resolve(ctx context.Context, reg *schema.Registry, question string) (intent.QueryIntent, error) {
	summary := SchemaSummary(reg)
	feedback := ""

	var lastViolations []intent.Violation
	total := 1 + r.attempts
	for attempt := 1; attempt <= total; attempt++ {
		raw, err := r.completer.Complete(ctx, Request{
			Question:       question,
			SchemaSummary:  summary,
			RepairFeedback: feedback,
		})
		if err != nil {
			return intent.QueryIntent{}, &UnresolvableError{
				Question: question,
				Attempts: attempt,
				Cause:    err,
			}
		}

		q, err := ParseIntent(raw)
		if err != nil {
			r.log.Warn("intent proposal unparseable", "attempt", attempt, "err", err)
			feedback = "The previous response could not be parsed: " + err.Error() +
				". Respond with a single JSON object and nothing else."
			continue
		}

		violations := intent.Validate(q, reg)
		if len(violations) == 0 {
			r.log.Info("intent resolved", "attempt", attempt, "intent", q.String(), "confidence", q.Confidence)
			return q, nil
		}

		lastViolations = violations
		feedback = repairFeedback(violations)
		r.log.Warn("intent proposal invalid", "attempt", attempt, "violations", len(violations))
	}

	return intent.QueryIntent{}, &UnresolvableError{
		Question:   question,
		Attempts:   total,
		Violations: lastViolations,
	}
}

func repairFeedback(violations []intent.Violation) string {
	s := "The previous intent was rejected by schema validation:\n"
	for _, v := range violations {
		s += "- " + v.String() + "\n"
	}
	s += "Correct these problems using only columns and operators from the schema above."
	return s
}
