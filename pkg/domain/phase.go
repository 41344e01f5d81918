package domain

import (
	"slices"
	"strings"
)

// TransitionKind tags an edge as taken on a success or a failure verdict.
type TransitionKind string

const (
	TransitionSuccess TransitionKind = "success"
	TransitionFailure TransitionKind = "failure"
)

// Valid reports whether k is one of the known transition kinds.
func (k TransitionKind) Valid() bool {
	return k == TransitionSuccess || k == TransitionFailure
}

// Phase is one stage of a scripted interaction.
type Phase struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	// SystemPrompt holds the behavioral instructions handed to the conversational agent
	// while the session sits in this phase.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`

	// SuccessTransitions and FailureTransitions are priority ordered: only the first
	// entry is ever taken.
	SuccessTransitions []int `json:"success_phases" yaml:"success_phases"`
	FailureTransitions []int `json:"failure_phases" yaml:"failure_phases"`

	// ConditionIDs is a set kept in insertion order.
	ConditionIDs []int `json:"condition_ids" yaml:"condition_ids"`

	// Closure marks the phase as terminal: arriving here ends the session.
	Closure bool `json:"closure,omitempty" yaml:"closure,omitempty"`
}

// Transitions returns the ordered target list for the given kind.
func (p *Phase) Transitions(kind TransitionKind) []int {
	switch kind {
	case TransitionSuccess:
		return p.SuccessTransitions
	case TransitionFailure:
		return p.FailureTransitions
	}
	return nil
}

// SetTransitions replaces the ordered target list for the given kind.
func (p *Phase) SetTransitions(kind TransitionKind, targets []int) {
	switch kind {
	case TransitionSuccess:
		p.SuccessTransitions = targets
	case TransitionFailure:
		p.FailureTransitions = targets
	}
}

// IsDeadEnd reports whether the phase has no outgoing edge at all.
func (p *Phase) IsDeadEnd() bool {
	return len(p.SuccessTransitions) == 0 && len(p.FailureTransitions) == 0
}

// HasCondition reports whether the condition is attached to the phase.
func (p *Phase) HasCondition(conditionID int) bool {
	return slices.Contains(p.ConditionIDs, conditionID)
}

// Clone returns a deep copy of the phase.
func (p Phase) Clone() Phase {
	p.SuccessTransitions = slices.Clone(p.SuccessTransitions)
	p.FailureTransitions = slices.Clone(p.FailureTransitions)
	p.ConditionIDs = slices.Clone(p.ConditionIDs)
	return p
}

// EndMarkerName is the legacy phase name used for the explicit end of a conversation.
const EndMarkerName = "Conversation End"

// IsClosureName applies the legacy naming convention for terminal phases.
// It only exists to import documents that predate the explicit Closure flag.
func IsClosureName(name string) bool {
	return name == EndMarkerName || strings.Contains(strings.ToLower(name), "closure")
}
