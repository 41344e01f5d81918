package interchange

import (
	"fmt"
	"slices"

	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/domain"
)

// Header carries the scenario-level fields.
type Header struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt" mapstructure:"system_prompt"`
	Version      int    `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`
}

// Phase is the exported shape of a phase. Condition associations live in
// Document.PhaseConditions, not here.
type Phase struct {
	ID            int    `json:"id" yaml:"id" mapstructure:"id"`
	Name          string `json:"name" yaml:"name" mapstructure:"name"`
	SystemPrompt  string `json:"system_prompt" yaml:"system_prompt" mapstructure:"system_prompt"`
	SuccessPhases []int  `json:"success_phases" yaml:"success_phases" mapstructure:"success_phases"`
	FailurePhases []int  `json:"failure_phases" yaml:"failure_phases" mapstructure:"failure_phases"`
	Closure       *bool  `json:"closure,omitempty" yaml:"closure,omitempty" mapstructure:"closure"`
}

// Document is the interchange representation of a scenario.
type Document struct {
	Scenario        Header                  `json:"scenario" yaml:"scenario" mapstructure:"scenario"`
	Conditions      []domain.Condition      `json:"conditions" yaml:"conditions" mapstructure:"conditions"`
	Phases          []Phase                 `json:"phases" yaml:"phases" mapstructure:"phases"`
	PhaseConditions []domain.PhaseCondition `json:"phase_conditions" yaml:"phase_conditions" mapstructure:"phase_conditions"`
	EntryPhaseID    *int                    `json:"entry_phase_id,omitempty" yaml:"entry_phase_id,omitempty" mapstructure:"entry_phase_id"`
	RedFlags        []string                `json:"red_flags,omitempty" yaml:"red_flags,omitempty" mapstructure:"red_flags"`
}

// Export renders sc as a document, renumbering ids densely. Scenarios with fatal
// violations are refused: renumbering would drop their dangling references.
func Export(sc *domain.Scenario) (*Document, error) {
	if err := validator.AsError(validator.Validate(sc)); err != nil {
		return nil, fmt.Errorf("export %q: %w", sc.Name, err)
	}
	dense, _, err := sc.Densify()
	if err != nil {
		return nil, fmt.Errorf("export %q: %w", sc.Name, err)
	}

	doc := &Document{
		Scenario: Header{
			Name:         dense.Name,
			SystemPrompt: dense.SystemPrompt,
			Version:      dense.Version,
		},
		Conditions:      slices.Clone(dense.Conditions),
		Phases:          make([]Phase, 0, len(dense.Phases)),
		PhaseConditions: dense.PhaseConditions(),
		RedFlags:        slices.Clone(dense.RedFlags),
	}
	if doc.Conditions == nil {
		doc.Conditions = []domain.Condition{}
	}
	if doc.PhaseConditions == nil {
		doc.PhaseConditions = []domain.PhaseCondition{}
	}
	if dense.EntryPhaseID != 0 {
		entry := dense.EntryPhaseID
		doc.EntryPhaseID = &entry
	}

	for _, p := range dense.Phases {
		closure := p.Closure
		doc.Phases = append(doc.Phases, Phase{
			ID:            p.ID,
			Name:          p.Name,
			SystemPrompt:  p.SystemPrompt,
			SuccessPhases: nonNil(p.SuccessTransitions),
			FailurePhases: nonNil(p.FailureTransitions),
			Closure:       &closure,
		})
	}
	return doc, nil
}

// Import converts a document into a scenario. Ids are kept as they appear in the
// document; structural problems (dangling ids, duplicates) are left for the graph
// validator to report. Association rows naming an unknown phase have nowhere to live
// and fail the import.
func Import(doc *Document) (*domain.Scenario, error) {
	sc := &domain.Scenario{
		Name:         doc.Scenario.Name,
		SystemPrompt: doc.Scenario.SystemPrompt,
		Version:      doc.Scenario.Version,
		Conditions:   slices.Clone(doc.Conditions),
		Phases:       make([]domain.Phase, 0, len(doc.Phases)),
		RedFlags:     slices.Clone(doc.RedFlags),
	}

	for _, p := range doc.Phases {
		closure := domain.IsClosureName(p.Name)
		if p.Closure != nil {
			closure = *p.Closure
		}
		sc.Phases = append(sc.Phases, domain.Phase{
			ID:                 p.ID,
			Name:               p.Name,
			SystemPrompt:       p.SystemPrompt,
			SuccessTransitions: nonNil(p.SuccessPhases),
			FailureTransitions: nonNil(p.FailurePhases),
			ConditionIDs:       []int{},
			Closure:            closure,
		})
	}

	for _, row := range doc.PhaseConditions {
		p := sc.Phase(row.PhaseID)
		if p == nil {
			return nil, fmt.Errorf("phase_conditions: %w", &domain.NotFoundError{Kind: "phase", ID: row.PhaseID})
		}
		if !p.HasCondition(row.ConditionID) {
			p.ConditionIDs = append(p.ConditionIDs, row.ConditionID)
		}
	}

	switch {
	case doc.EntryPhaseID != nil:
		sc.EntryPhaseID = *doc.EntryPhaseID
	case len(sc.Phases) > 0:
		sc.EntryPhaseID = sc.Phases[0].ID
	}
	return sc, nil
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return slices.Clone(ids)
}
