package ports

import (
	"context"

	"github.com/aretw0/scenaria/pkg/domain"
)

// Evaluator judges a user turn against the current phase.
// Implementations return a *domain.SchemaError for malformed verdicts and a
// *domain.EvaluatorUnavailableError when the call fails or times out.
type Evaluator interface {
	Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error)

// Evaluate calls f(ctx, req).
func (f EvaluatorFunc) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
	return f(ctx, req)
}
