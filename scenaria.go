package scenaria

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/internal/runtime"
	"github.com/aretw0/scenaria/internal/validator"
	loamAdapter "github.com/aretw0/scenaria/pkg/adapters/loam"
	"github.com/aretw0/scenaria/pkg/adapters/memory"
	"github.com/aretw0/scenaria/pkg/authoring"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/aretw0/scenaria/pkg/session"
)

// Engine is the high-level entry point for the library. It ties a scenario library,
// the traversal runtime and a session manager together.
type Engine struct {
	library   ports.ScenarioLibrary
	runtime   *runtime.Engine
	sessions  *session.Manager
	evaluator ports.Evaluator

	store            ports.StateStore
	locker           ports.DistributedLocker
	hooks            domain.LifecycleHooks
	logger           *slog.Logger
	finalTurnGrace   bool
	evaluatorTimeout time.Duration
	onDiff           func(context.Context, *domain.StateDiff)

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLibrary injects a scenario library, bypassing the default Loam initialization.
func WithLibrary(l ports.ScenarioLibrary) Option {
	return func(e *Engine) {
		e.library = l
	}
}

// WithStore sets where sessions are persisted. Defaults to memory.
func WithStore(store ports.StateStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker enables distributed session locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithEvaluator sets the evaluator used by Turn.
func WithEvaluator(ev ports.Evaluator) Option {
	return func(e *Engine) {
		e.evaluator = ev
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithFinalTurnGrace allows one last message after a closure phase is reached.
func WithFinalTurnGrace(enabled bool) Option {
	return func(e *Engine) {
		e.finalTurnGrace = enabled
	}
}

// WithEvaluatorTimeout bounds each evaluator call.
func WithEvaluatorTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.evaluatorTimeout = d
	}
}

// WithDiffListener receives the delta of every persisted turn.
func WithDiffListener(fn func(context.Context, *domain.StateDiff)) Option {
	return func(e *Engine) {
		e.onDiff = fn
	}
}

// New initializes an Engine. By default scenarios are read from a Loam repository at
// scenarioDir; with WithLibrary the directory is only used as a label and may be empty.
func New(scenarioDir string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	if eng.library == nil {
		if scenarioDir == "" {
			return nil, fmt.Errorf("scenarioDir is required when no custom library is provided")
		}
		absPath, err := filepath.Abs(scenarioDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		lib, err := loamAdapter.Open(absPath, loamAdapter.WithLogger(eng.logger))
		if err != nil {
			return nil, err
		}
		eng.library = lib
		eng.Name = filepath.Base(absPath)
	} else if scenarioDir != "" {
		eng.Name = filepath.Base(scenarioDir)
	}

	if eng.Name != "" {
		eng.logger = eng.logger.With("library", eng.Name)
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}

	eng.runtime = runtime.NewEngine(
		runtime.WithLogger(eng.logger),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithFinalTurnGrace(eng.finalTurnGrace),
		runtime.WithEvaluatorTimeout(eng.evaluatorTimeout),
	)

	managerOpts := []session.Option{session.WithLogger(eng.logger)}
	if eng.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(eng.locker))
	}
	if eng.onDiff != nil {
		managerOpts = append(managerOpts, session.WithDiffListener(eng.onDiff))
	}
	eng.sessions = session.NewManager(eng.store, eng.runtime, managerOpts...)

	return eng, nil
}

// Scenario loads a published scenario.
func (e *Engine) Scenario(ctx context.Context, id string) (*domain.Scenario, error) {
	return e.library.Get(ctx, id)
}

// Scenarios lists the published scenario ids.
func (e *Engine) Scenarios(ctx context.Context) ([]string, error) {
	return e.library.List(ctx)
}

// Validate runs the graph validator over a published scenario.
func (e *Engine) Validate(ctx context.Context, id string) ([]validator.Violation, error) {
	sc, err := e.library.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return validator.Validate(sc), nil
}

// Publish stores sc as the next version of id. The version continues from whichever is
// higher, sc or the copy already published; sc itself is not modified. Graphs with fatal
// violations are refused; the violations are returned in both cases.
func (e *Engine) Publish(ctx context.Context, id string, sc *domain.Scenario) (*domain.Scenario, []validator.Violation, error) {
	return authoring.PublishTo(ctx, e.library, id, sc, authoring.WithLogger(e.logger))
}

// Start creates, or resumes, a session. An empty sessionID gets a generated one.
// Scenarios with fatal violations are refused.
func (e *Engine) Start(ctx context.Context, scenarioID, sessionID string) (*domain.SessionState, error) {
	sc, err := e.library.Get(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	return e.sessions.Start(ctx, sc, scenarioID, sessionID)
}

// Turn evaluates an utterance with the configured evaluator and persists the result.
func (e *Engine) Turn(ctx context.Context, sessionID, utterance string) (*domain.SessionState, domain.TurnVerdict, error) {
	if e.evaluator == nil {
		return nil, domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{Cause: errors.New("no evaluator configured")}
	}
	sc, err := e.scenarioOf(ctx, sessionID)
	if err != nil {
		return nil, domain.TurnVerdict{}, err
	}
	return e.sessions.Turn(ctx, e.evaluator, sc, sessionID, utterance)
}

// Apply persists a turn whose verdict was obtained elsewhere.
func (e *Engine) Apply(ctx context.Context, sessionID string, verdict domain.TurnVerdict, utterance string) (*domain.SessionState, error) {
	sc, err := e.scenarioOf(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.sessions.Apply(ctx, sc, sessionID, verdict, utterance)
}

// Project returns the administrative projection of a session.
func (e *Engine) Project(ctx context.Context, sessionID string) (domain.Projection, error) {
	sc, err := e.scenarioOf(ctx, sessionID)
	if err != nil {
		return domain.Projection{}, err
	}
	return e.sessions.Project(ctx, sc, sessionID)
}

// Watch returns a channel of changed scenario ids.
// Returns error if the library does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.library.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current library does not support watching")
}

// Library returns the scenario library used by the engine.
func (e *Engine) Library() ports.ScenarioLibrary {
	return e.library
}

// Sessions returns the session manager, for adapters that drive sessions directly.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Evaluator returns the configured evaluator, or nil.
func (e *Engine) Evaluator() ports.Evaluator {
	return e.evaluator
}

// SessionScenario loads a session and the scenario version it was started on, which
// may be older than the one the library now serves.
func (e *Engine) SessionScenario(ctx context.Context, sessionID string) (*domain.Scenario, *domain.SessionState, error) {
	return e.sessions.ScenarioFor(ctx, e.library, sessionID)
}

func (e *Engine) scenarioOf(ctx context.Context, sessionID string) (*domain.Scenario, error) {
	sc, _, err := e.SessionScenario(ctx, sessionID)
	return sc, err
}
