package authoring

import (
	"testing"

	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/domain"
	"pgregory.net/rapid"
)

// Property: no sequence of builder operations can leave a dangling reference behind.
func TestProperty_MutationsKeepReferencesSound(t *testing.T) {
	for _, dense := range []bool{false, true} {
		rapid.Check(t, func(rt *rapid.T) {
			var opts []Option
			if dense {
				opts = append(opts, WithDenseIDs())
			}
			b := New("random", opts...)
			_, _ = b.AddPhase("root")

			steps := rapid.IntRange(1, 60).Draw(rt, "steps")
			for i := 0; i < steps; i++ {
				sc := b.Scenario()
				phase := pickPhase(rt, sc)
				cond := pickCondition(rt, sc)
				kind := rapid.SampledFrom([]domain.TransitionKind{domain.TransitionSuccess, domain.TransitionFailure}).Draw(rt, "kind")

				switch rapid.IntRange(0, 7).Draw(rt, "op") {
				case 0:
					_, _ = b.AddPhase("phase")
				case 1:
					_, _ = b.AddCondition("condition")
				case 2:
					_ = b.AddTransition(phase, kind, pickPhase(rt, sc))
				case 3:
					_ = b.RemoveTransition(phase, kind, pickPhase(rt, sc))
				case 4:
					_ = b.AttachCondition(phase, cond)
				case 5:
					_ = b.DetachCondition(phase, cond)
				case 6:
					if len(sc.Phases) > 1 {
						_ = b.RemovePhase(phase)
					}
				case 7:
					_ = b.RemoveCondition(cond)
				}
			}

			for _, v := range b.Validate() {
				if v.Kind == validator.KindReferential || v.Kind == validator.KindDuplicateID {
					rt.Fatalf("unexpected %s violation: %s", v.Kind, v.Message)
				}
			}
			if dense && !b.Scenario().IsDense() {
				rt.Fatalf("dense builder produced gapped ids")
			}
		})
	}
}

// Property: removing phase k from 1..N shifts every later id down by one and
// rewrites or deletes every reference consistently.
func TestProperty_ReindexingLaw(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		b := New("law", WithDenseIDs())
		for i := 0; i < n; i++ {
			_, _ = b.AddPhase("phase")
		}
		edges := rapid.IntRange(0, n*3).Draw(rt, "edges")
		for i := 0; i < edges; i++ {
			from := rapid.IntRange(1, n).Draw(rt, "from")
			to := rapid.IntRange(1, n).Draw(rt, "to")
			kind := rapid.SampledFrom([]domain.TransitionKind{domain.TransitionSuccess, domain.TransitionFailure}).Draw(rt, "kind")
			_ = b.AddTransition(from, kind, to)
		}

		before := b.Scenario()
		k := rapid.IntRange(1, n).Draw(rt, "k")
		if err := b.RemovePhase(k); err != nil {
			rt.Fatalf("remove phase %d: %v", k, err)
		}
		after := b.Scenario()

		if len(after.Phases) != n-1 {
			rt.Fatalf("expected %d phases, got %d", n-1, len(after.Phases))
		}
		shift := func(id int) int {
			if id > k {
				return id - 1
			}
			return id
		}
		for _, old := range before.Phases {
			if old.ID == k {
				continue
			}
			got := after.Phase(shift(old.ID))
			if got == nil {
				rt.Fatalf("phase %d vanished", old.ID)
			}
			for _, kind := range []domain.TransitionKind{domain.TransitionSuccess, domain.TransitionFailure} {
				var want []int
				for _, target := range old.Transitions(kind) {
					if target != k {
						want = append(want, shift(target))
					}
				}
				if !equalInts(want, got.Transitions(kind)) {
					rt.Fatalf("phase %d %s transitions: want %v, got %v", old.ID, kind, want, got.Transitions(kind))
				}
			}
		}

		// The interchange renumbering of a stable-id graph must agree with the eager one.
		stable, err := FromScenario(before)
		if err != nil {
			rt.Fatalf("from scenario: %v", err)
		}
		if err := stable.RemovePhase(k); err != nil {
			rt.Fatalf("stable remove: %v", err)
		}
		densified, _, err := stable.Scenario().Densify()
		if err != nil {
			rt.Fatalf("densify: %v", err)
		}
		for i := range after.Phases {
			if !equalInts(after.Phases[i].SuccessTransitions, densified.Phases[i].SuccessTransitions) ||
				!equalInts(after.Phases[i].FailureTransitions, densified.Phases[i].FailureTransitions) {
				rt.Fatalf("densify disagrees with eager reindex at phase %d", i+1)
			}
		}
	})
}

func pickPhase(rt *rapid.T, sc *domain.Scenario) int {
	if len(sc.Phases) == 0 {
		return 1
	}
	return rapid.SampledFrom(sc.Phases).Draw(rt, "phase").ID
}

func pickCondition(rt *rapid.T, sc *domain.Scenario) int {
	if len(sc.Conditions) == 0 {
		return 1
	}
	return rapid.SampledFrom(sc.Conditions).Draw(rt, "condition").ID
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
