package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/domain"
)

// Engine is the traversal core. It is stateless: sessions are passed in and out
// by value, so different sessions may advance concurrently without locking.
type Engine struct {
	logger           *slog.Logger
	hooks            domain.LifecycleHooks
	finalTurnGrace   bool
	evaluatorTimeout time.Duration
	now              func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithFinalTurnGrace lets the user send one last message after a closure phase is reached.
// The session is flagged PendingTerminalConfirmation and ends on the following turn.
func WithFinalTurnGrace(enabled bool) Option {
	return func(e *Engine) {
		e.finalTurnGrace = enabled
	}
}

// WithEvaluatorTimeout bounds every evaluator call made by Turn. Zero means no timeout.
func WithEvaluatorTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.evaluatorTimeout = d
	}
}

// NewEngine creates a new engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a session at the entry phase of sc.
func (e *Engine) Start(ctx context.Context, sc *domain.Scenario, scenarioID, sessionID string) (*domain.SessionState, error) {
	entry := sc.Phase(sc.EntryPhaseID)
	if entry == nil {
		return nil, &domain.NotFoundError{Kind: "phase", ID: sc.EntryPhaseID}
	}

	state := domain.NewSessionState(sessionID, scenarioID, entry.ID)
	state.ScenarioVersion = sc.Version
	e.logger.Debug("session started", "session_id", sessionID, "scenario", scenarioID, "phase_id", entry.ID)
	e.emitPhaseEnter(ctx, sessionID, entry)
	return state, nil
}

// Project builds the read-only administrative view of a session.
func (e *Engine) Project(sc *domain.Scenario, state *domain.SessionState) domain.Projection {
	return domain.NewProjection(sc, state)
}
