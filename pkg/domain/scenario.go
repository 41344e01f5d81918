package domain

import "slices"

// Scenario is the aggregate an author builds. It owns its conditions and phases exclusively.
type Scenario struct {
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	// Conditions and Phases are stored in id order; element i carries id i+1.
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Phases     []Phase     `json:"phases" yaml:"phases"`

	EntryPhaseID int `json:"entry_phase_id" yaml:"entry_phase_id"`

	// RedFlags lists behaviors that end the conversation immediately when the evaluator reports them.
	RedFlags []string `json:"red_flags,omitempty" yaml:"red_flags,omitempty"`

	// Version is bumped every time the scenario is published.
	Version int `json:"version,omitempty" yaml:"version,omitempty"`
}

// Phase returns the phase with the given id, or nil.
func (s *Scenario) Phase(id int) *Phase {
	for i := range s.Phases {
		if s.Phases[i].ID == id {
			return &s.Phases[i]
		}
	}
	return nil
}

// Condition returns the condition with the given id, or nil.
func (s *Scenario) Condition(id int) *Condition {
	for i := range s.Conditions {
		if s.Conditions[i].ID == id {
			return &s.Conditions[i]
		}
	}
	return nil
}

// HasRedFlag reports whether the description is a declared red flag.
func (s *Scenario) HasRedFlag(description string) bool {
	return slices.Contains(s.RedFlags, description)
}

// PhaseConditions flattens the phase/condition association in phase order.
func (s *Scenario) PhaseConditions() []PhaseCondition {
	var rows []PhaseCondition
	for _, p := range s.Phases {
		for _, cid := range p.ConditionIDs {
			rows = append(rows, PhaseCondition{PhaseID: p.ID, ConditionID: cid})
		}
	}
	return rows
}

// ConditionsOf resolves the conditions attached to a phase, skipping unknown ids.
func (s *Scenario) ConditionsOf(phaseID int) []Condition {
	p := s.Phase(phaseID)
	if p == nil {
		return nil
	}
	out := make([]Condition, 0, len(p.ConditionIDs))
	for _, cid := range p.ConditionIDs {
		if c := s.Condition(cid); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// Clone returns a deep copy of the scenario.
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	out := *s
	out.Conditions = slices.Clone(s.Conditions)
	out.RedFlags = slices.Clone(s.RedFlags)
	if s.Phases != nil {
		out.Phases = make([]Phase, len(s.Phases))
		for i, p := range s.Phases {
			out.Phases[i] = p.Clone()
		}
	}
	return &out
}
