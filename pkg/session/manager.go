package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed session lock survives a crashed holder.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu      sync.Mutex
	refs    int
	turning bool // guarded by Manager.mu
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store  ports.StateStore
	engine ports.Engine

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)

	onDiff func(context.Context, *domain.StateDiff)
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDiffListener registers a callback receiving the delta of every persisted turn.
func WithDiffListener(fn func(context.Context, *domain.StateDiff)) Option {
	return func(m *Manager) {
		m.onDiff = fn
	}
}

// NewManager creates a new Session Manager with the given persistence store and engine.
func NewManager(store ports.StateStore, engine ports.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		engine:  engine,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Start creates a session for sc. An empty sessionID gets a random UUID.
// Starting an existing session returns its stored state unchanged. New sessions are
// refused when sc has fatal violations.
func (m *Manager) Start(ctx context.Context, sc *domain.Scenario, scenarioID, sessionID string) (*domain.SessionState, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var state *domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		if err := validator.AsError(validator.Validate(sc)); err != nil {
			return fmt.Errorf("scenario %s cannot start sessions: %w", scenarioID, err)
		}
		state, err = m.engine.Start(ctx, sc, scenarioID, sessionID)
		if err != nil {
			return err
		}
		if err := m.store.Save(ctx, sessionID, state); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		logging.ForSession(m.logger, state).Info("session started", logging.KeyPhaseID, state.CurrentPhaseID)
		return nil
	})
	return state, err
}

// Turn evaluates an utterance against the stored session and persists the result.
// A second turn for the same session while one is pending fails with domain.ErrTurnInFlight.
func (m *Manager) Turn(ctx context.Context, ev ports.Evaluator, sc *domain.Scenario, sessionID, utterance string) (*domain.SessionState, domain.TurnVerdict, error) {
	var (
		next    *domain.SessionState
		verdict domain.TurnVerdict
	)
	err := m.withTurn(ctx, sessionID, func(ctx context.Context, state *domain.SessionState) (*domain.SessionState, error) {
		var err error
		next, verdict, err = m.engine.Turn(ctx, ev, sc, state, utterance)
		return next, err
	})
	if err != nil {
		return nil, verdict, err
	}
	return next, verdict, nil
}

// Apply advances the stored session with a verdict obtained elsewhere.
func (m *Manager) Apply(ctx context.Context, sc *domain.Scenario, sessionID string, verdict domain.TurnVerdict, utterance string) (*domain.SessionState, error) {
	var next *domain.SessionState
	err := m.withTurn(ctx, sessionID, func(ctx context.Context, state *domain.SessionState) (*domain.SessionState, error) {
		var err error
		next, err = m.engine.Apply(ctx, sc, state, verdict, utterance)
		return next, err
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// withTurn runs one load/advance/save cycle with the session marked in flight.
func (m *Manager) withTurn(ctx context.Context, sessionID string, step func(context.Context, *domain.SessionState) (*domain.SessionState, error)) error {
	entry := m.acquire(sessionID)
	defer m.release(sessionID)

	m.mu.Lock()
	if entry.turning {
		m.mu.Unlock()
		return domain.ErrTurnInFlight
	}
	entry.turning = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		entry.turning = false
		m.mu.Unlock()
	}()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if m.locker != nil {
		unlock, ok, err := m.locker.TryLock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		if !ok {
			return domain.ErrTurnInFlight
		}
		defer m.unlock(ctx, sessionID, unlock)
	}

	state, err := m.store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	next, err := step(ctx, state)
	if err != nil {
		return err
	}
	if err := m.store.Save(ctx, sessionID, next); err != nil {
		return fmt.Errorf("failed to persist turn: %w", err)
	}

	if m.onDiff != nil {
		if diff := domain.Diff(state, next); diff != nil {
			m.onDiff(ctx, diff)
		}
	}
	return nil
}

// Project loads a session and builds its administrative projection.
func (m *Manager) Project(ctx context.Context, sc *domain.Scenario, sessionID string) (domain.Projection, error) {
	state, err := m.Load(ctx, sessionID)
	if err != nil {
		return domain.Projection{}, err
	}
	return m.engine.Project(sc, state), nil
}

// Load retrieves an existing session from the store.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	var state *domain.SessionState
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		state, err = m.store.Load(ctx, sessionID)
		return err
	})
	return state, err
}

// Save persists the session state.
func (m *Manager) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Save(ctx, sessionID, state)
	})
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying state store.
func (m *Manager) Store() ports.StateStore {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer m.unlock(ctx, sessionID, unlock)
	}

	return fn(ctx)
}

func (m *Manager) unlock(ctx context.Context, sessionID string, unlock ports.UnlockFunc) {
	if err := unlock(ctx); err != nil {
		m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
			"session_id", sessionID,
			"err", err,
		)
	}
}
