package domain

import "slices"

// EndReason records why a session stopped accepting turns.
type EndReason string

const (
	EndReasonClosure EndReason = "closure"  // Closure phase reached
	EndReasonRedFlag EndReason = "red_flag" // Evaluator reported a red flag
)

// SessionState represents the snapshot of one conversation against a Scenario.
// It is mutated only by the traversal engine, once per turn.
type SessionState struct {
	SessionID  string `json:"session_id"`
	ScenarioID string `json:"scenario_id"`

	// ScenarioVersion pins the session to the published version it started on.
	ScenarioVersion int `json:"scenario_version"`

	// CurrentPhaseID is the phase the conversation currently sits in.
	CurrentPhaseID int `json:"current_phase_id"`

	// AccumulatedConditions is an insertion-ordered set that never shrinks within a session.
	AccumulatedConditions []int `json:"accumulated_conditions"`

	// VisitedPhases records the phase of every applied turn, repeats included.
	VisitedPhases []int `json:"visited_phase_sequence"`

	Ended bool `json:"ended"`

	// PendingTerminalConfirmation is set when a closure phase was reached but one
	// final turn is still allowed.
	PendingTerminalConfirmation bool `json:"pending_terminal_confirmation"`

	EndReason EndReason `json:"end_reason,omitempty"`

	// Utterances holds the user utterances of applied turns, oldest first.
	Utterances []string `json:"utterances,omitempty"`

	// Turn counts applied turns.
	Turn int `json:"turn"`

	// Sealed carries the encrypted snapshot when the state is an envelope written by an
	// encrypting store. It is empty on every state the engine works with.
	Sealed string `json:"sealed,omitempty"`
}

// NewSessionState creates a clean state sitting at the entry phase.
func NewSessionState(sessionID, scenarioID string, entryPhaseID int) *SessionState {
	return &SessionState{
		SessionID:             sessionID,
		ScenarioID:            scenarioID,
		CurrentPhaseID:        entryPhaseID,
		AccumulatedConditions: []int{},
		VisitedPhases:         []int{},
	}
}

// HasCondition reports whether the condition was already satisfied in this session.
func (s *SessionState) HasCondition(conditionID int) bool {
	return slices.Contains(s.AccumulatedConditions, conditionID)
}

// Clone returns a deep copy so the engine can build the next state without touching the input.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	next := *s
	next.AccumulatedConditions = slices.Clone(s.AccumulatedConditions)
	next.VisitedPhases = slices.Clone(s.VisitedPhases)
	next.Utterances = slices.Clone(s.Utterances)
	return &next
}
