package domain

// TransitionPreview describes the phase a success or failure verdict would lead to.
type TransitionPreview struct {
	PhaseID   int    `json:"phase_id"`
	PhaseName string `json:"phase_name"`
	Closure   bool   `json:"closure,omitempty"`

	// RequiredConditions are the conditions attached to the target phase.
	RequiredConditions []Condition `json:"required_conditions"`
	// MissingConditions are the required ones not yet accumulated in the session.
	MissingConditions []Condition `json:"missing_conditions"`
}

// Projection is the read-only view of a session consumed by administrative tools.
type Projection struct {
	SessionID                   string             `json:"session_id"`
	CurrentPhaseID              int                `json:"current_phase_id"`
	CurrentPhaseName            string             `json:"current_phase_name"`
	AccumulatedConditions       []Condition        `json:"accumulated_conditions"`
	NextSuccess                 *TransitionPreview `json:"next_success,omitempty"`
	NextFailure                 *TransitionPreview `json:"next_failure,omitempty"`
	Ended                       bool               `json:"ended"`
	PendingTerminalConfirmation bool               `json:"pending_terminal_confirmation,omitempty"`
	EndReason                   EndReason          `json:"end_reason,omitempty"`
}

// NewProjection builds the projection of state against its scenario.
func NewProjection(sc *Scenario, state *SessionState) Projection {
	proj := Projection{
		SessionID:                   state.SessionID,
		CurrentPhaseID:              state.CurrentPhaseID,
		AccumulatedConditions:       []Condition{},
		Ended:                       state.Ended,
		PendingTerminalConfirmation: state.PendingTerminalConfirmation,
		EndReason:                   state.EndReason,
	}

	for _, cid := range state.AccumulatedConditions {
		if c := sc.Condition(cid); c != nil {
			proj.AccumulatedConditions = append(proj.AccumulatedConditions, *c)
		}
	}

	current := sc.Phase(state.CurrentPhaseID)
	if current == nil {
		return proj
	}
	proj.CurrentPhaseName = current.Name
	proj.NextSuccess = preview(sc, state, current.SuccessTransitions)
	proj.NextFailure = preview(sc, state, current.FailureTransitions)
	return proj
}

func preview(sc *Scenario, state *SessionState, targets []int) *TransitionPreview {
	if len(targets) == 0 {
		return nil
	}
	target := sc.Phase(targets[0])
	if target == nil {
		return nil
	}

	p := &TransitionPreview{
		PhaseID:            target.ID,
		PhaseName:          target.Name,
		Closure:            target.Closure,
		RequiredConditions: sc.ConditionsOf(target.ID),
		MissingConditions:  []Condition{},
	}
	for _, c := range p.RequiredConditions {
		if !state.HasCondition(c.ID) {
			p.MissingConditions = append(p.MissingConditions, c)
		}
	}
	return p
}
