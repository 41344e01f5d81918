package domain

// StateDiff represents the changes between two session states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentPhaseID *int `json:"current_phase_id,omitempty"`

	// NewConditions lists conditions accumulated since the old state.
	// Accumulation is append-only, so this is always a suffix.
	NewConditions []int `json:"new_conditions,omitempty"`

	// VisitedAppended lists phases appended to the visited sequence.
	VisitedAppended []int `json:"visited_appended,omitempty"`

	Ended                       *bool      `json:"ended,omitempty"`
	PendingTerminalConfirmation *bool      `json:"pending_terminal_confirmation,omitempty"`
	EndReason                   *EndReason `json:"end_reason,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *SessionState) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{
		SessionID: newState.SessionID,
	}

	if oldState == nil || oldState.CurrentPhaseID != newState.CurrentPhaseID {
		diff.CurrentPhaseID = &newState.CurrentPhaseID
	}

	if oldState == nil {
		if newState.Ended {
			diff.Ended = &newState.Ended
		}
		if newState.PendingTerminalConfirmation {
			diff.PendingTerminalConfirmation = &newState.PendingTerminalConfirmation
		}
	} else {
		if oldState.Ended != newState.Ended {
			diff.Ended = &newState.Ended
		}
		if oldState.PendingTerminalConfirmation != newState.PendingTerminalConfirmation {
			diff.PendingTerminalConfirmation = &newState.PendingTerminalConfirmation
		}
	}

	if newState.EndReason != "" && (oldState == nil || oldState.EndReason != newState.EndReason) {
		diff.EndReason = &newState.EndReason
	}

	diff.NewConditions = appendedSuffix(oldState, newState, func(s *SessionState) []int { return s.AccumulatedConditions })
	diff.VisitedAppended = appendedSuffix(oldState, newState, func(s *SessionState) []int { return s.VisitedPhases })

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// appendedSuffix assumes append-only behavior for the selected list.
func appendedSuffix(old, new *SessionState, list func(*SessionState) []int) []int {
	newList := list(new)
	if len(newList) == 0 {
		return nil
	}
	if old == nil {
		return newList
	}
	oldLen := len(list(old))
	if len(newList) > oldLen {
		return newList[oldLen:]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.CurrentPhaseID == nil &&
		d.Ended == nil &&
		d.PendingTerminalConfirmation == nil &&
		d.EndReason == nil &&
		len(d.NewConditions) == 0 &&
		len(d.VisitedAppended) == 0
}
