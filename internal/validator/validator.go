package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/scenaria/pkg/domain"
)

// Severity tells whether a violation blocks publication.
type Severity string

const (
	SeverityFatal    Severity = "fatal"
	SeverityAdvisory Severity = "advisory"
)

// Kind categorizes a violation.
type Kind string

const (
	KindReferential Kind = "referential"
	KindDeadEnd     Kind = "dead_end"
	KindUnreachable Kind = "unreachable"
	KindSelfLoop    Kind = "self_loop"
	KindDuplicateID Kind = "duplicate_id"
	KindEmptyText   Kind = "empty_text"
)

// Violation is a single structural finding about a scenario graph.
type Violation struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	// PhaseID is the phase the finding is about (0 when scenario-wide).
	PhaseID int    `json:"phase_id,omitempty"`
	Message string `json:"message"`
}

func (v Violation) Error() string {
	return fmt.Sprintf("[%s] %s", v.Kind, v.Message)
}

// Validate checks a scenario for structural soundness. Every rule runs independently
// and all findings are collected.
func Validate(sc *domain.Scenario) []Violation {
	if sc == nil {
		return []Violation{{Kind: KindReferential, Severity: SeverityFatal, Message: "scenario is nil"}}
	}

	var out []Violation
	out = append(out, checkIdentity(sc)...)
	out = append(out, checkReferences(sc)...)
	out = append(out, checkDeadEnds(sc)...)
	out = append(out, checkSelfLoops(sc)...)
	out = append(out, checkReachability(sc)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity == SeverityFatal
		}
		return out[i].PhaseID < out[j].PhaseID
	})
	return out
}

func checkIdentity(sc *domain.Scenario) []Violation {
	var out []Violation

	seenPhases := make(map[int]bool, len(sc.Phases))
	for _, p := range sc.Phases {
		if p.ID < 1 || seenPhases[p.ID] {
			out = append(out, Violation{
				Kind: KindDuplicateID, Severity: SeverityFatal, PhaseID: p.ID,
				Message: fmt.Sprintf("phase id %d is duplicated or not positive", p.ID),
			})
		}
		seenPhases[p.ID] = true

		if strings.TrimSpace(p.Name) == "" {
			out = append(out, Violation{
				Kind: KindEmptyText, Severity: SeverityFatal, PhaseID: p.ID,
				Message: fmt.Sprintf("phase %d has an empty name", p.ID),
			})
		}
	}

	seenConditions := make(map[int]bool, len(sc.Conditions))
	for _, c := range sc.Conditions {
		if c.ID < 1 || seenConditions[c.ID] {
			out = append(out, Violation{
				Kind: KindDuplicateID, Severity: SeverityFatal,
				Message: fmt.Sprintf("condition id %d is duplicated or not positive", c.ID),
			})
		}
		seenConditions[c.ID] = true

		if strings.TrimSpace(c.Description) == "" {
			out = append(out, Violation{
				Kind: KindEmptyText, Severity: SeverityFatal,
				Message: fmt.Sprintf("condition %d has an empty description", c.ID),
			})
		}
	}
	return out
}

func checkReferences(sc *domain.Scenario) []Violation {
	var out []Violation

	if sc.Phase(sc.EntryPhaseID) == nil {
		out = append(out, Violation{
			Kind: KindReferential, Severity: SeverityFatal,
			Message: fmt.Sprintf("entry phase %d does not exist", sc.EntryPhaseID),
		})
	}

	for _, p := range sc.Phases {
		for _, cid := range p.ConditionIDs {
			if sc.Condition(cid) == nil {
				out = append(out, Violation{
					Kind: KindReferential, Severity: SeverityFatal, PhaseID: p.ID,
					Message: fmt.Sprintf("phase %d references unknown condition %d", p.ID, cid),
				})
			}
		}
		for _, kind := range []domain.TransitionKind{domain.TransitionSuccess, domain.TransitionFailure} {
			for _, target := range p.Transitions(kind) {
				if sc.Phase(target) == nil {
					out = append(out, Violation{
						Kind: KindReferential, Severity: SeverityFatal, PhaseID: p.ID,
						Message: fmt.Sprintf("phase %d has a %s transition to unknown phase %d", p.ID, kind, target),
					})
				}
			}
		}
	}
	return out
}

func checkDeadEnds(sc *domain.Scenario) []Violation {
	var out []Violation
	for _, p := range sc.Phases {
		if p.IsDeadEnd() && !p.Closure {
			out = append(out, Violation{
				Kind: KindDeadEnd, Severity: SeverityAdvisory, PhaseID: p.ID,
				Message: fmt.Sprintf("phase %d (%s) has no outgoing transitions and is not marked closure", p.ID, p.Name),
			})
		}
	}
	return out
}

func checkSelfLoops(sc *domain.Scenario) []Violation {
	var out []Violation
	for _, p := range sc.Phases {
		for _, kind := range []domain.TransitionKind{domain.TransitionSuccess, domain.TransitionFailure} {
			for _, target := range p.Transitions(kind) {
				if target == p.ID {
					out = append(out, Violation{
						Kind: KindSelfLoop, Severity: SeverityAdvisory, PhaseID: p.ID,
						Message: fmt.Sprintf("phase %d lists itself as a %s transition", p.ID, kind),
					})
				}
			}
		}
	}
	return out
}

// checkReachability crawls from the entry phase over success and failure edges.
func checkReachability(sc *domain.Scenario) []Violation {
	if sc.Phase(sc.EntryPhaseID) == nil {
		// Reported by checkReferences; there is no root to crawl from.
		return nil
	}

	visited := make(map[int]bool, len(sc.Phases))
	queue := []int{sc.EntryPhaseID}

	for len(queue) > 0 {
		currentID := queue[0]
		queue = queue[1:]

		if visited[currentID] {
			continue
		}
		visited[currentID] = true

		p := sc.Phase(currentID)
		if p == nil {
			continue // Broken link, reported by checkReferences
		}
		for _, target := range p.SuccessTransitions {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
		for _, target := range p.FailureTransitions {
			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}

	var out []Violation
	for _, p := range sc.Phases {
		if !visited[p.ID] {
			out = append(out, Violation{
				Kind: KindUnreachable, Severity: SeverityAdvisory, PhaseID: p.ID,
				Message: fmt.Sprintf("phase %d (%s) is not reachable from entry phase %d", p.ID, p.Name, sc.EntryPhaseID),
			})
		}
	}
	return out
}

// Fatal filters the violations that block publication.
func Fatal(vs []Violation) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.Severity == SeverityFatal {
			out = append(out, v)
		}
	}
	return out
}

// HasFatal reports whether any violation blocks publication.
func HasFatal(vs []Violation) bool {
	return len(Fatal(vs)) > 0
}

// AggregateError represents multiple fatal violations.
type AggregateError struct {
	Violations []Violation
}

func (e *AggregateError) Error() string {
	if len(e.Violations) == 1 {
		return e.Violations[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e.Violations))
	for i, v := range e.Violations {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, v.Error())
	}
	return sb.String()
}

// Is lets callers match the aggregate with domain.ErrValidation.
func (e *AggregateError) Is(target error) bool { return target == domain.ErrValidation }

// AsError returns an *AggregateError holding the fatal violations, or nil if there are none.
func AsError(vs []Violation) error {
	fatal := Fatal(vs)
	if len(fatal) == 0 {
		return nil
	}
	return &AggregateError{Violations: fatal}
}
