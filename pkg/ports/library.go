package ports

import (
	"context"

	"github.com/aretw0/scenaria/pkg/domain"
)

// ScenarioLibrary defines where published scenarios come from.
// This allows the storage layer (Loam, Memory) to be decoupled from the engine.
type ScenarioLibrary interface {
	// Get retrieves a scenario by id.
	// Returns domain.ErrScenarioNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Scenario, error)

	// List returns the ids of all available scenarios.
	List(ctx context.Context) ([]string, error)
}

// VersionedLibrary is implemented by libraries that keep every published version, so
// sessions can keep running on the version they started on after a republish.
type VersionedLibrary interface {
	// GetVersion retrieves one published version of a scenario.
	// Returns domain.ErrScenarioNotFound if that version is not kept.
	GetVersion(ctx context.Context, id string, version int) (*domain.Scenario, error)
}

// ScenarioPublisher is implemented by libraries that accept new scenario versions.
type ScenarioPublisher interface {
	Put(ctx context.Context, id string, sc *domain.Scenario) error
}

// Watchable is implemented by libraries that can report changed scenarios.
type Watchable interface {
	// Watch returns a channel receiving the id of each changed scenario.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
