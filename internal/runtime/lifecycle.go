package runtime

import (
	"context"

	"github.com/aretw0/scenaria/pkg/domain"
)

func (e *Engine) emitPhaseEnter(ctx context.Context, sessionID string, p *domain.Phase) {
	if e.hooks.OnPhaseEnter == nil {
		return
	}
	e.hooks.OnPhaseEnter(ctx, &domain.PhaseEvent{
		EventBase: e.base(domain.EventPhaseEnter, sessionID),
		PhaseID:   p.ID,
		PhaseName: p.Name,
	})
}

func (e *Engine) emitPhaseLeave(ctx context.Context, sessionID string, p *domain.Phase) {
	if e.hooks.OnPhaseLeave == nil {
		return
	}
	e.hooks.OnPhaseLeave(ctx, &domain.PhaseEvent{
		EventBase: e.base(domain.EventPhaseLeave, sessionID),
		PhaseID:   p.ID,
		PhaseName: p.Name,
	})
}

// emitTurn fires every hook implied by the move from prev to next.
func (e *Engine) emitTurn(ctx context.Context, sc *domain.Scenario, prev, next *domain.SessionState, verdict domain.TurnVerdict) {
	transitioned := prev.CurrentPhaseID != next.CurrentPhaseID
	if transitioned {
		if p := sc.Phase(prev.CurrentPhaseID); p != nil {
			e.emitPhaseLeave(ctx, next.SessionID, p)
		}
		if p := sc.Phase(next.CurrentPhaseID); p != nil {
			e.emitPhaseEnter(ctx, next.SessionID, p)
		}
	}

	if e.hooks.OnTurn != nil {
		e.hooks.OnTurn(ctx, &domain.TurnEvent{
			EventBase:     e.base(domain.EventTurn, next.SessionID),
			PhaseID:       prev.CurrentPhaseID,
			Signal:        verdict.Signal.Normalize(),
			NewConditions: next.AccumulatedConditions[len(prev.AccumulatedConditions):],
			Transitioned:  transitioned,
		})
	}

	if next.Ended && !prev.Ended && e.hooks.OnSessionEnd != nil {
		e.hooks.OnSessionEnd(ctx, &domain.SessionEvent{
			EventBase: e.base(domain.EventSessionEnd, next.SessionID),
			PhaseID:   next.CurrentPhaseID,
			Reason:    next.EndReason,
			Turns:     next.Turn,
		})
	}
}

func (e *Engine) base(t domain.EventType, sessionID string) domain.EventBase {
	return domain.EventBase{
		Timestamp: e.now(),
		Type:      t,
		SessionID: sessionID,
	}
}
