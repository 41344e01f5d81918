package domain

// Condition is a natural-language criterion attached to one or more phases.
// IDs are scenario-scoped and dense (1..N).
type Condition struct {
	ID          int    `json:"id" yaml:"id" mapstructure:"id"`
	Description string `json:"description" yaml:"description" mapstructure:"description"`
}

// PhaseCondition is the flattened phase-to-condition association used by the
// interchange format.
type PhaseCondition struct {
	PhaseID     int `json:"phase_id" yaml:"phase_id" mapstructure:"phase_id"`
	ConditionID int `json:"conditions_id" yaml:"conditions_id" mapstructure:"conditions_id"`
}
