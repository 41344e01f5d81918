package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/scenaria/pkg/domain"
)

// LoggingHooks logs every lifecycle event at Info level (phase moves at Debug).
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, ev *domain.PhaseEvent) {
			logger.Debug("phase_enter", "session_id", ev.SessionID, "phase_id", ev.PhaseID, "phase", ev.PhaseName)
		},
		OnPhaseLeave: func(ctx context.Context, ev *domain.PhaseEvent) {
			logger.Debug("phase_leave", "session_id", ev.SessionID, "phase_id", ev.PhaseID, "phase", ev.PhaseName)
		},
		OnTurn: func(ctx context.Context, ev *domain.TurnEvent) {
			logger.Info("turn",
				"session_id", ev.SessionID,
				"phase_id", ev.PhaseID,
				"signal", ev.Signal,
				"new_conditions", ev.NewConditions,
				"transitioned", ev.Transitioned,
			)
		},
		OnSessionEnd: func(ctx context.Context, ev *domain.SessionEvent) {
			logger.Info("session_end",
				"session_id", ev.SessionID,
				"phase_id", ev.PhaseID,
				"reason", ev.Reason,
				"turns", ev.Turns,
			)
		},
	}
}

// Chain fans every event out to each hook set in order. Nil callbacks are skipped.
func Chain(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, s := range sets {
		out.OnPhaseEnter = chain(out.OnPhaseEnter, s.OnPhaseEnter)
		out.OnPhaseLeave = chain(out.OnPhaseLeave, s.OnPhaseLeave)
		out.OnTurn = chain(out.OnTurn, s.OnTurn)
		out.OnSessionEnd = chain(out.OnSessionEnd, s.OnSessionEnd)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, ev E) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
