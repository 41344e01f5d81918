package domain

import "fmt"

// IDMap records how Densify renumbered phases and conditions (old id -> new id).
type IDMap struct {
	Phases     map[int]int
	Conditions map[int]int
}

// IsDense reports whether phase and condition ids already form contiguous 1..N ranges in slice order.
func (s *Scenario) IsDense() bool {
	for i, p := range s.Phases {
		if p.ID != i+1 {
			return false
		}
	}
	for i, c := range s.Conditions {
		if c.ID != i+1 {
			return false
		}
	}
	return true
}

// Densify returns a copy of the scenario whose phase and condition ids are renumbered
// to contiguous 1..N ranges, keeping their relative order. Every transition, condition
// association and the entry phase are rewritten through the same mapping; references
// to ids that do not exist are dropped. The receiver is never modified.
func (s *Scenario) Densify() (*Scenario, IDMap, error) {
	m := IDMap{
		Phases:     make(map[int]int, len(s.Phases)),
		Conditions: make(map[int]int, len(s.Conditions)),
	}
	for i, p := range s.Phases {
		if _, dup := m.Phases[p.ID]; dup {
			return nil, IDMap{}, &ValidationError{Field: "phases", Reason: fmt.Sprintf("duplicate phase id %d", p.ID)}
		}
		m.Phases[p.ID] = i + 1
	}
	for i, c := range s.Conditions {
		if _, dup := m.Conditions[c.ID]; dup {
			return nil, IDMap{}, &ValidationError{Field: "conditions", Reason: fmt.Sprintf("duplicate condition id %d", c.ID)}
		}
		m.Conditions[c.ID] = i + 1
	}

	out := s.Clone()
	for i := range out.Conditions {
		out.Conditions[i].ID = m.Conditions[out.Conditions[i].ID]
	}
	for i := range out.Phases {
		p := &out.Phases[i]
		p.ID = m.Phases[p.ID]
		p.SuccessTransitions = remap(p.SuccessTransitions, m.Phases)
		p.FailureTransitions = remap(p.FailureTransitions, m.Phases)
		p.ConditionIDs = remap(p.ConditionIDs, m.Conditions)
	}
	out.EntryPhaseID = m.Phases[s.EntryPhaseID]

	if !out.IsDense() {
		return nil, IDMap{}, fmt.Errorf("densify produced non contiguous ids for scenario %q", s.Name)
	}
	return out, m, nil
}

func remap(ids []int, m map[int]int) []int {
	if ids == nil {
		return nil
	}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if next, ok := m[id]; ok {
			out = append(out, next)
		}
	}
	return out
}
