package runtime

import (
	"context"
	"errors"
	"slices"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
)

// Turn evaluates one user utterance and applies the verdict. The returned state is
// nil whenever err is non-nil: evaluator failures and malformed verdicts never
// produce a partial update, so callers can retry with the same input state.
func (e *Engine) Turn(ctx context.Context, ev ports.Evaluator, sc *domain.Scenario, state *domain.SessionState, utterance string) (*domain.SessionState, domain.TurnVerdict, error) {
	if state.Ended {
		return nil, domain.TurnVerdict{}, domain.ErrSessionEnded
	}
	req, err := e.Request(sc, state, utterance)
	if err != nil {
		return nil, domain.TurnVerdict{}, err
	}

	if e.evaluatorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.evaluatorTimeout)
		defer cancel()
	}

	verdict, err := ev.Evaluate(ctx, req)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if !errors.Is(err, domain.ErrSchema) && !errors.Is(err, domain.ErrEvaluatorUnavailable) {
			err = &domain.EvaluatorUnavailableError{Cause: err}
		}
		logging.ForSession(e.logger, state).Warn("evaluation failed", logging.KeyPhaseID, state.CurrentPhaseID, "err", err)
		return nil, domain.TurnVerdict{}, err
	}

	next, err := e.Apply(ctx, sc, state, verdict, utterance)
	if err != nil {
		return nil, verdict, err
	}
	return next, verdict, nil
}

// Request builds what the evaluator sees for the next turn of state.
func (e *Engine) Request(sc *domain.Scenario, state *domain.SessionState, utterance string) (domain.EvaluationRequest, error) {
	current := sc.Phase(state.CurrentPhaseID)
	if current == nil {
		return domain.EvaluationRequest{}, &domain.NotFoundError{Kind: "phase", ID: state.CurrentPhaseID}
	}

	history := slices.Clone(state.Utterances)
	if utterance != "" {
		history = append(history, utterance)
	}
	if history == nil {
		history = []string{}
	}
	accumulated := slices.Clone(state.AccumulatedConditions)
	if accumulated == nil {
		accumulated = []int{}
	}

	return domain.EvaluationRequest{
		SessionID:             state.SessionID,
		PhaseName:             current.Name,
		PhaseSystemPrompt:     current.SystemPrompt,
		PhaseConditions:       sc.ConditionsOf(current.ID),
		UtteranceHistory:      history,
		AccumulatedConditions: accumulated,
		RedFlags:              slices.Clone(sc.RedFlags),
	}, nil
}
