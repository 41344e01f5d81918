package cli

import (
	"context"
	"sort"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/session"
)

// SessionSummary is one row of `scenaria session ls`.
type SessionSummary struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Phase    string `json:"phase"`
	Turn     int    `json:"turn"`
	Ended    bool   `json:"ended"`
}

// SessionReport is the detailed view of one session.
type SessionReport struct {
	State      *domain.SessionState `json:"state"`
	Projection domain.Projection    `json:"projection"`
}

// ListSessions summarizes every stored session. Sessions whose scenario can no
// longer be loaded are still listed with the raw phase id.
func ListSessions(ctx context.Context, app *App) ([]SessionSummary, error) {
	sessions := app.Engine.Sessions()
	ids, err := sessions.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		state, err := sessions.Load(ctx, id)
		if err != nil {
			app.Logger.Warn("skipping unreadable session", "session_id", id, "err", err)
			continue
		}
		row := SessionSummary{ID: id, Scenario: state.ScenarioID, Turn: state.Turn, Ended: state.Ended}
		if sc, err := session.ScenarioOf(ctx, app.Engine.Library(), state); err == nil {
			row.Phase = PhaseName(sc, state)
		} else {
			row.Phase = PhaseName(&domain.Scenario{}, state)
		}
		out = append(out, row)
	}
	return out, nil
}

// InspectSession loads a session together with its projection.
func InspectSession(ctx context.Context, app *App, sessionID string) (SessionReport, error) {
	state, err := app.Engine.Sessions().Load(ctx, sessionID)
	if err != nil {
		return SessionReport{}, err
	}
	proj, err := app.Engine.Project(ctx, sessionID)
	if err != nil {
		return SessionReport{}, err
	}
	return SessionReport{State: state, Projection: proj}, nil
}
