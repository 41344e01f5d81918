package domain

// Signal tells the engine whether the turn counts as success or failure for transition purposes.
type Signal string

const (
	SignalNone    Signal = "none"
	SignalSuccess Signal = "success"
	SignalFailure Signal = "failure"
)

// Valid reports whether s is part of the enumerated set. The empty string is read as SignalNone.
func (s Signal) Valid() bool {
	switch s {
	case "", SignalNone, SignalSuccess, SignalFailure:
		return true
	}
	return false
}

// Normalize maps the empty signal to SignalNone.
func (s Signal) Normalize() Signal {
	if s == "" {
		return SignalNone
	}
	return s
}

// TurnVerdict is the external evaluator's judgment of one user turn.
type TurnVerdict struct {
	SatisfiedConditionIDs []int    `json:"satisfied_condition_ids" mapstructure:"satisfied_condition_ids"`
	Signal                Signal   `json:"signal" mapstructure:"signal"`
	RedFlags              []string `json:"red_flags,omitempty" mapstructure:"red_flags"`
}

// EvaluationRequest is what the core sends to the evaluator for one turn.
type EvaluationRequest struct {
	SessionID             string      `json:"session_id,omitempty"`
	PhaseName             string      `json:"phase_name"`
	PhaseSystemPrompt     string      `json:"phase_system_prompt"`
	PhaseConditions       []Condition `json:"phase_conditions"`
	UtteranceHistory      []string    `json:"utterance_history"`
	AccumulatedConditions []int       `json:"accumulated_conditions"`
	RedFlags              []string    `json:"red_flags,omitempty"`
}
