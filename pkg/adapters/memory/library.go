package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/scenaria/pkg/domain"
)

// Library implements ports.ScenarioLibrary, ports.ScenarioPublisher and
// ports.VersionedLibrary in memory. Every stored version stays retrievable so sessions
// keep the graph they started on. It is the default library behind `scenaria serve`
// and the one used by tests.
type Library struct {
	mu        sync.RWMutex
	scenarios map[string]*domain.Scenario
	versions  map[string]map[int]*domain.Scenario
}

// NewLibrary creates a library seeded with the given scenarios.
func NewLibrary(seed map[string]*domain.Scenario) *Library {
	l := &Library{
		scenarios: make(map[string]*domain.Scenario, len(seed)),
		versions:  make(map[string]map[int]*domain.Scenario, len(seed)),
	}
	for id, sc := range seed {
		l.store(id, sc)
	}
	return l
}

// Get returns a copy of the latest scenario.
func (l *Library) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sc, ok := l.scenarios[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScenarioNotFound, id)
	}
	return sc.Clone(), nil
}

// GetVersion returns a copy of one stored version.
func (l *Library) GetVersion(ctx context.Context, id string, version int) (*domain.Scenario, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sc, ok := l.versions[id][version]
	if !ok {
		return nil, fmt.Errorf("%w: %s version %d", domain.ErrScenarioNotFound, id, version)
	}
	return sc.Clone(), nil
}

// List returns the sorted scenario ids.
func (l *Library) List(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.scenarios))
	for id := range l.scenarios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Put stores a copy of sc under id as the latest version. Earlier versions stay
// available through GetVersion; storing a version number again replaces that version.
func (l *Library) Put(ctx context.Context, id string, sc *domain.Scenario) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Reason: "scenario id cannot be empty"}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store(id, sc)
	return nil
}

func (l *Library) store(id string, sc *domain.Scenario) {
	cp := sc.Clone()
	l.scenarios[id] = cp
	if l.versions[id] == nil {
		l.versions[id] = make(map[int]*domain.Scenario)
	}
	l.versions[id][cp.Version] = cp
}
