package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/domain"
)

// Advance computes the state that follows a verdict. It is a pure function of its
// inputs: state is never modified and no hooks fire.
//
// The rules, in order:
//  1. satisfied conditions are merged into the accumulation (first-seen order, never shrinks)
//  2. the current phase is appended to the visited sequence
//  3. success follows the first success transition, failure the first failure transition,
//     none stays; an empty list also stays
//  4. landing on (or staying at) a closure phase ends the session
//
// A reported red flag ends the session in place. With final-turn grace, step 4 only flags
// the session and the next turn ends it.
func (e *Engine) Advance(sc *domain.Scenario, state *domain.SessionState, verdict domain.TurnVerdict) (*domain.SessionState, error) {
	return e.advance(sc, state, verdict, "")
}

func (e *Engine) advance(sc *domain.Scenario, state *domain.SessionState, verdict domain.TurnVerdict, utterance string) (*domain.SessionState, error) {
	if state.Ended {
		return nil, domain.ErrSessionEnded
	}
	current := sc.Phase(state.CurrentPhaseID)
	if current == nil {
		return nil, &domain.NotFoundError{Kind: "phase", ID: state.CurrentPhaseID}
	}
	if err := checkVerdict(sc, verdict); err != nil {
		return nil, err
	}

	next := state.Clone()
	if next.AccumulatedConditions == nil {
		next.AccumulatedConditions = []int{}
	}
	for _, cid := range verdict.SatisfiedConditionIDs {
		if !next.HasCondition(cid) {
			next.AccumulatedConditions = append(next.AccumulatedConditions, cid)
		}
	}
	next.VisitedPhases = append(next.VisitedPhases, current.ID)
	if utterance != "" {
		next.Utterances = append(next.Utterances, utterance)
	}
	next.Turn++

	switch {
	case state.PendingTerminalConfirmation:
		next.PendingTerminalConfirmation = false
		next.Ended = true
		next.EndReason = domain.EndReasonClosure
		return next, nil
	case len(verdict.RedFlags) > 0:
		next.Ended = true
		next.EndReason = domain.EndReasonRedFlag
		return next, nil
	}

	var targets []int
	switch verdict.Signal.Normalize() {
	case domain.SignalSuccess:
		targets = current.SuccessTransitions
	case domain.SignalFailure:
		targets = current.FailureTransitions
	}
	if len(targets) > 0 {
		target := sc.Phase(targets[0])
		if target == nil {
			return nil, fmt.Errorf("phase %d: %w", current.ID, &domain.NotFoundError{Kind: "phase", ID: targets[0]})
		}
		next.CurrentPhaseID = target.ID
	}

	if sc.Phase(next.CurrentPhaseID).Closure {
		if e.finalTurnGrace {
			next.PendingTerminalConfirmation = true
		} else {
			next.Ended = true
			next.EndReason = domain.EndReasonClosure
		}
	}
	return next, nil
}

func checkVerdict(sc *domain.Scenario, verdict domain.TurnVerdict) error {
	if !verdict.Signal.Valid() {
		return &domain.SchemaError{Reason: fmt.Sprintf("unknown signal %q", verdict.Signal)}
	}
	for _, cid := range verdict.SatisfiedConditionIDs {
		if sc.Condition(cid) == nil {
			return &domain.SchemaError{Reason: fmt.Sprintf("unknown condition id %d", cid)}
		}
	}
	for _, flag := range verdict.RedFlags {
		if !sc.HasRedFlag(flag) {
			return &domain.SchemaError{Reason: fmt.Sprintf("undeclared red flag %q", flag)}
		}
	}
	return nil
}

// Apply advances a session with an externally obtained verdict and fires the lifecycle hooks.
func (e *Engine) Apply(ctx context.Context, sc *domain.Scenario, state *domain.SessionState, verdict domain.TurnVerdict, utterance string) (*domain.SessionState, error) {
	logger := logging.ForSession(e.logger, state)
	next, err := e.advance(sc, state, verdict, utterance)
	if err != nil {
		logger.Debug("turn rejected", logging.KeyPhaseID, state.CurrentPhaseID, "err", err)
		return nil, err
	}

	logger.Debug("turn applied",
		logging.KeyPhaseID, next.CurrentPhaseID,
		"signal", verdict.Signal.Normalize(),
		"conditions", len(next.AccumulatedConditions),
		"ended", next.Ended,
	)
	e.emitTurn(ctx, sc, state, next, verdict)
	return next, nil
}
