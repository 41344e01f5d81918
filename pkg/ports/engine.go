package ports

import (
	"context"

	"github.com/aretw0/scenaria/pkg/domain"
)

// Engine defines the traversal core as seen by adapters (HTTP, MCP, CLI).
// It holds no session state: every call takes the state in and returns the next one.
type Engine interface {
	// Start creates a fresh session sitting at the scenario's entry phase.
	Start(ctx context.Context, sc *domain.Scenario, scenarioID, sessionID string) (*domain.SessionState, error)

	// Apply advances the session with a verdict that was obtained elsewhere.
	Apply(ctx context.Context, sc *domain.Scenario, state *domain.SessionState, verdict domain.TurnVerdict, utterance string) (*domain.SessionState, error)

	// Turn asks the evaluator to judge the utterance and applies its verdict.
	Turn(ctx context.Context, ev Evaluator, sc *domain.Scenario, state *domain.SessionState, utterance string) (*domain.SessionState, domain.TurnVerdict, error)

	// Project builds the administrative view of a session.
	Project(sc *domain.Scenario, state *domain.SessionState) domain.Projection
}
