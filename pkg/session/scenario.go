package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
)

// ScenarioOf returns the scenario version state was started on. The latest copy is used
// when it still carries that version; otherwise a ports.VersionedLibrary is asked for the
// pinned one. A session whose version is gone fails with domain.ErrScenarioRetired
// rather than walking a graph it was not started on.
func ScenarioOf(ctx context.Context, library ports.ScenarioLibrary, state *domain.SessionState) (*domain.Scenario, error) {
	latest, err := library.Get(ctx, state.ScenarioID)
	if err == nil && latest.Version == state.ScenarioVersion {
		return latest, nil
	}
	if err != nil && !errors.Is(err, domain.ErrScenarioNotFound) {
		return nil, err
	}

	if versioned, ok := library.(ports.VersionedLibrary); ok {
		pinned, verr := versioned.GetVersion(ctx, state.ScenarioID, state.ScenarioVersion)
		if verr == nil {
			return pinned, nil
		}
		if !errors.Is(verr, domain.ErrScenarioNotFound) {
			return nil, verr
		}
	}

	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: session %s started on %s version %d, library holds version %d",
		domain.ErrScenarioRetired, state.SessionID, state.ScenarioID, state.ScenarioVersion, latest.Version)
}

// ScenarioFor loads a session and the scenario version it is pinned to.
func (m *Manager) ScenarioFor(ctx context.Context, library ports.ScenarioLibrary, sessionID string) (*domain.Scenario, *domain.SessionState, error) {
	state, err := m.Load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	sc, err := ScenarioOf(ctx, library, state)
	if err != nil {
		return nil, nil, err
	}
	return sc, state, nil
}
