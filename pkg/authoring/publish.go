package authoring

import (
	"context"
	"fmt"

	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
)

// PublishTo stores sc as the next version of id in library. The version continues from
// whichever is higher, sc or the copy already published, and sc itself is left
// untouched. Graphs with fatal violations are refused; the violations are returned in
// both cases.
func PublishTo(ctx context.Context, library ports.ScenarioLibrary, id string, sc *domain.Scenario, opts ...Option) (*domain.Scenario, []validator.Violation, error) {
	pub, ok := library.(ports.ScenarioPublisher)
	if !ok {
		return nil, nil, fmt.Errorf("library %T does not accept new scenarios", library)
	}
	if sc == nil {
		return nil, nil, &domain.ValidationError{Reason: "scenario is nil"}
	}

	next := sc.Clone()
	if prev, err := library.Get(ctx, id); err == nil && prev.Version > next.Version {
		next.Version = prev.Version
	}

	b, err := FromScenario(next, opts...)
	if err != nil {
		return nil, nil, err
	}
	published, violations, err := b.Publish()
	if err != nil {
		return nil, violations, err
	}
	if err := pub.Put(ctx, id, published); err != nil {
		return nil, violations, err
	}
	return published, violations, nil
}
