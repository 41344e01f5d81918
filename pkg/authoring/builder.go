package authoring

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/domain"
)

// Field names a mutable text field of a phase.
type Field string

const (
	FieldName         Field = "name"
	FieldSystemPrompt Field = "system_prompt"
)

// Builder manages the construction of a single Scenario.
// It is not safe for concurrent use: one authoring session edits a scenario at a time.
type Builder struct {
	scenario *domain.Scenario
	logger   *slog.Logger

	// Ids are handed out from monotonic counters and never reused unless dense is set.
	nextPhaseID     int
	nextConditionID int
	dense           bool
}

// Option configures the Builder.
type Option func(*Builder)

// WithLogger configures a logger for the Builder.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithDenseIDs makes RemovePhase and RemoveCondition renumber the remaining ids to a
// contiguous 1..N range immediately, as the legacy authoring tool did.
// Without it ids are stable and only renumbered on export (see domain.Scenario.Densify).
func WithDenseIDs() Option {
	return func(b *Builder) {
		b.dense = true
	}
}

// New creates a builder for an empty scenario.
func New(name string, opts ...Option) *Builder {
	b := &Builder{
		scenario:        &domain.Scenario{Name: name},
		logger:          logging.NewNop(),
		nextPhaseID:     1,
		nextConditionID: 1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// FromScenario creates a builder editing a copy of an existing scenario.
// Ids must be positive and unique; in dense mode they must also form a 1..N range.
func FromScenario(sc *domain.Scenario, opts ...Option) (*Builder, error) {
	if sc == nil {
		return nil, &domain.ValidationError{Reason: "scenario is nil"}
	}

	b := New(sc.Name, opts...)
	seen := make(map[int]bool, len(sc.Phases))
	for _, p := range sc.Phases {
		if p.ID < 1 || seen[p.ID] {
			return nil, &domain.ValidationError{Field: "phases", Reason: fmt.Sprintf("phase id %d is duplicated or not positive", p.ID)}
		}
		seen[p.ID] = true
		b.nextPhaseID = max(b.nextPhaseID, p.ID+1)
	}
	clear(seen)
	for _, c := range sc.Conditions {
		if c.ID < 1 || seen[c.ID] {
			return nil, &domain.ValidationError{Field: "conditions", Reason: fmt.Sprintf("condition id %d is duplicated or not positive", c.ID)}
		}
		seen[c.ID] = true
		b.nextConditionID = max(b.nextConditionID, c.ID+1)
	}
	if b.dense && !sc.IsDense() {
		return nil, &domain.ValidationError{Reason: "ids must be dense and ordered"}
	}

	b.scenario = sc.Clone()
	return b, nil
}

// Scenario returns a deep copy of the scenario under construction.
func (b *Builder) Scenario() *domain.Scenario {
	return b.scenario.Clone()
}

// SetScenario updates the scenario name and opening system prompt.
func (b *Builder) SetScenario(name, systemPrompt string) error {
	if strings.TrimSpace(name) == "" {
		return &domain.ValidationError{Field: "name", Reason: "scenario name cannot be empty"}
	}
	b.scenario.Name = name
	b.scenario.SystemPrompt = systemPrompt
	return nil
}

// AddCondition registers a new condition under a fresh id.
func (b *Builder) AddCondition(description string) (domain.Condition, error) {
	if strings.TrimSpace(description) == "" {
		return domain.Condition{}, &domain.ValidationError{Field: "description", Reason: "condition description cannot be empty"}
	}
	c := domain.Condition{
		ID:          b.nextConditionID,
		Description: description,
	}
	b.nextConditionID++
	b.scenario.Conditions = append(b.scenario.Conditions, c)
	return c, nil
}

// EditCondition replaces the description of an existing condition.
func (b *Builder) EditCondition(id int, description string) error {
	c := b.scenario.Condition(id)
	if c == nil {
		return &domain.NotFoundError{Kind: "condition", ID: id}
	}
	if strings.TrimSpace(description) == "" {
		return &domain.ValidationError{Field: "description", Reason: "condition description cannot be empty"}
	}
	c.Description = description
	return nil
}

// AddPhase appends a new phase under a fresh id.
// The first phase added to an empty scenario becomes the entry phase.
func (b *Builder) AddPhase(name string) (domain.Phase, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Phase{}, &domain.ValidationError{Field: "name", Reason: "phase name cannot be empty"}
	}
	p := domain.Phase{
		ID:                 b.nextPhaseID,
		Name:               name,
		SuccessTransitions: []int{},
		FailureTransitions: []int{},
		ConditionIDs:       []int{},
	}
	b.nextPhaseID++
	b.scenario.Phases = append(b.scenario.Phases, p)
	if b.scenario.Phase(b.scenario.EntryPhaseID) == nil {
		b.scenario.EntryPhaseID = p.ID
	}
	return p.Clone(), nil
}

// SetPhaseField mutates the name or system prompt of a phase.
func (b *Builder) SetPhaseField(phaseID int, field Field, value string) error {
	p := b.scenario.Phase(phaseID)
	if p == nil {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}
	switch field {
	case FieldName:
		if strings.TrimSpace(value) == "" {
			return &domain.ValidationError{Field: string(field), Reason: "phase name cannot be empty"}
		}
		p.Name = value
	case FieldSystemPrompt:
		p.SystemPrompt = value
	default:
		return &domain.ValidationError{Field: string(field), Reason: "unknown phase field"}
	}
	return nil
}

// SetClosure flags or unflags a phase as terminal.
func (b *Builder) SetClosure(phaseID int, closure bool) error {
	p := b.scenario.Phase(phaseID)
	if p == nil {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}
	p.Closure = closure
	return nil
}

// SetEntryPhase selects the phase sessions start in.
func (b *Builder) SetEntryPhase(phaseID int) error {
	if b.scenario.Phase(phaseID) == nil {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}
	b.scenario.EntryPhaseID = phaseID
	return nil
}

// AddRedFlag declares a behavior that ends the conversation when reported by the evaluator.
func (b *Builder) AddRedFlag(description string) error {
	if strings.TrimSpace(description) == "" {
		return &domain.ValidationError{Field: "red_flag", Reason: "red flag description cannot be empty"}
	}
	if !b.scenario.HasRedFlag(description) {
		b.scenario.RedFlags = append(b.scenario.RedFlags, description)
	}
	return nil
}

// AddTransition appends target to the ordered list of the given kind.
// Adding an existing target is a no-op.
func (b *Builder) AddTransition(phaseID int, kind domain.TransitionKind, targetID int) error {
	if !kind.Valid() {
		return &domain.ValidationError{Field: "kind", Reason: "transition kind must be success or failure"}
	}
	p := b.scenario.Phase(phaseID)
	if p == nil {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}
	if b.scenario.Phase(targetID) == nil {
		return &domain.NotFoundError{Kind: "phase", ID: targetID}
	}
	if targetID == phaseID {
		return &domain.ValidationError{Field: "target", Reason: "a phase cannot transition to itself"}
	}

	targets := p.Transitions(kind)
	if slices.Contains(targets, targetID) {
		return nil
	}
	p.SetTransitions(kind, append(targets, targetID))
	return nil
}

// RemoveTransition removes target from the list of the given kind. Missing entries are ignored.
func (b *Builder) RemoveTransition(phaseID int, kind domain.TransitionKind, targetID int) error {
	if !kind.Valid() {
		return &domain.ValidationError{Field: "kind", Reason: "transition kind must be success or failure"}
	}
	p := b.scenario.Phase(phaseID)
	if p == nil {
		return nil
	}
	p.SetTransitions(kind, slices.DeleteFunc(p.Transitions(kind), func(id int) bool { return id == targetID }))
	return nil
}

// AttachCondition associates a condition with a phase. Attaching twice is a no-op.
func (b *Builder) AttachCondition(phaseID, conditionID int) error {
	p := b.scenario.Phase(phaseID)
	if p == nil {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}
	if b.scenario.Condition(conditionID) == nil {
		return &domain.NotFoundError{Kind: "condition", ID: conditionID}
	}
	if !p.HasCondition(conditionID) {
		p.ConditionIDs = append(p.ConditionIDs, conditionID)
	}
	return nil
}

// DetachCondition removes the association between a phase and a condition.
func (b *Builder) DetachCondition(phaseID, conditionID int) error {
	p := b.scenario.Phase(phaseID)
	if p == nil {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}
	if b.scenario.Condition(conditionID) == nil {
		return &domain.NotFoundError{Kind: "condition", ID: conditionID}
	}
	p.ConditionIDs = slices.DeleteFunc(p.ConditionIDs, func(id int) bool { return id == conditionID })
	return nil
}

// Validate runs the graph validator against the current scenario.
func (b *Builder) Validate() []validator.Violation {
	return validator.Validate(b.scenario)
}

// Publish validates the scenario and, when no fatal violation is found, bumps its version
// and returns an immutable copy together with the advisory findings.
func (b *Builder) Publish() (*domain.Scenario, []validator.Violation, error) {
	violations := b.Validate()
	if err := validator.AsError(violations); err != nil {
		return nil, violations, err
	}
	b.scenario.Version++
	b.logger.Info("scenario published",
		"scenario", b.scenario.Name,
		"version", b.scenario.Version,
		"advisories", len(violations),
	)
	return b.scenario.Clone(), violations, nil
}
