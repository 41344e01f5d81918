package authoring

import (
	"fmt"
	"slices"

	"github.com/aretw0/scenaria/pkg/domain"
)

// RemovePhase deletes a phase together with every transition pointing at it.
// Transitions are deleted, never redirected. When the entry phase is removed the
// first remaining phase becomes the entry.
//
// In dense mode the remaining phases are renumbered to 1..N; the whole operation
// is restored from a snapshot if the renumbered graph fails its consistency check.
func (b *Builder) RemovePhase(phaseID int) error {
	idx := slices.IndexFunc(b.scenario.Phases, func(p domain.Phase) bool { return p.ID == phaseID })
	if idx < 0 {
		return &domain.NotFoundError{Kind: "phase", ID: phaseID}
	}

	snapshot := b.scenario.Clone()
	refsBefore := countPhaseRefs(b.scenario)
	refsToRemoved := countRefsTo(b.scenario, phaseID)

	b.scenario.Phases = slices.Delete(b.scenario.Phases, idx, idx+1)
	drop := func(id int) bool { return id == phaseID }
	for i := range b.scenario.Phases {
		p := &b.scenario.Phases[i]
		p.SuccessTransitions = slices.DeleteFunc(p.SuccessTransitions, drop)
		p.FailureTransitions = slices.DeleteFunc(p.FailureTransitions, drop)
	}
	if b.scenario.EntryPhaseID == phaseID {
		b.scenario.EntryPhaseID = 0
		if len(b.scenario.Phases) > 0 {
			b.scenario.EntryPhaseID = b.scenario.Phases[0].ID
		}
	}

	if err := b.compact(snapshot); err != nil {
		return err
	}

	if got, want := countPhaseRefs(b.scenario), refsBefore-refsToRemoved; got != want {
		b.restore(snapshot)
		return fmt.Errorf("remove phase %d: %d transitions survived, expected %d", phaseID, got, want)
	}

	b.logger.Debug("phase removed", "phase_id", phaseID, "remaining", len(b.scenario.Phases), "dense", b.dense)
	return nil
}

// RemoveCondition deletes a condition and cascades the removal to every phase
// association referencing it. Dense mode renumbers like RemovePhase.
func (b *Builder) RemoveCondition(conditionID int) error {
	idx := slices.IndexFunc(b.scenario.Conditions, func(c domain.Condition) bool { return c.ID == conditionID })
	if idx < 0 {
		return &domain.NotFoundError{Kind: "condition", ID: conditionID}
	}

	snapshot := b.scenario.Clone()
	rowsBefore := len(b.scenario.PhaseConditions())
	rowsToRemoved := 0
	for _, row := range b.scenario.PhaseConditions() {
		if row.ConditionID == conditionID {
			rowsToRemoved++
		}
	}

	b.scenario.Conditions = slices.Delete(b.scenario.Conditions, idx, idx+1)
	for i := range b.scenario.Phases {
		p := &b.scenario.Phases[i]
		p.ConditionIDs = slices.DeleteFunc(p.ConditionIDs, func(id int) bool { return id == conditionID })
	}

	if err := b.compact(snapshot); err != nil {
		return err
	}

	if got, want := len(b.scenario.PhaseConditions()), rowsBefore-rowsToRemoved; got != want {
		b.restore(snapshot)
		return fmt.Errorf("remove condition %d: %d associations survived, expected %d", conditionID, got, want)
	}

	b.logger.Debug("condition removed", "condition_id", conditionID, "remaining", len(b.scenario.Conditions), "dense", b.dense)
	return nil
}

// compact renumbers ids in dense mode and resets the id counters accordingly.
func (b *Builder) compact(snapshot *domain.Scenario) error {
	if !b.dense {
		return nil
	}
	densified, _, err := b.scenario.Densify()
	if err != nil {
		b.restore(snapshot)
		return fmt.Errorf("reindex: %w", err)
	}
	b.scenario = densified
	b.nextPhaseID = len(densified.Phases) + 1
	b.nextConditionID = len(densified.Conditions) + 1
	return nil
}

func (b *Builder) restore(snapshot *domain.Scenario) {
	b.scenario = snapshot
	if b.dense {
		b.nextPhaseID = len(snapshot.Phases) + 1
		b.nextConditionID = len(snapshot.Conditions) + 1
	}
	b.logger.Warn("graph restored from snapshot", "scenario", snapshot.Name)
}

// countPhaseRefs counts transitions whose target exists.
func countPhaseRefs(sc *domain.Scenario) int {
	n := 0
	for _, p := range sc.Phases {
		for _, t := range p.SuccessTransitions {
			if sc.Phase(t) != nil {
				n++
			}
		}
		for _, t := range p.FailureTransitions {
			if sc.Phase(t) != nil {
				n++
			}
		}
	}
	return n
}

// countRefsTo counts the valid transitions that disappear when phaseID is removed:
// edges pointing at it plus the outgoing edges it owns.
func countRefsTo(sc *domain.Scenario, phaseID int) int {
	n := 0
	for _, p := range sc.Phases {
		for _, t := range slices.Concat(p.SuccessTransitions, p.FailureTransitions) {
			if sc.Phase(t) == nil {
				continue
			}
			if t == phaseID || p.ID == phaseID {
				n++
			}
		}
	}
	return n
}
