package validator

import (
	"testing"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validScenario() *domain.Scenario {
	return &domain.Scenario{
		Name:       "onboarding",
		Conditions: []domain.Condition{{ID: 1, Description: "introduces themself"}},
		Phases: []domain.Phase{
			{ID: 1, Name: "welcome", SuccessTransitions: []int{2}, FailureTransitions: []int{3}, ConditionIDs: []int{1}},
			{ID: 2, Name: "polite closure", Closure: true},
			{ID: 3, Name: "abrupt closure", Closure: true},
		},
		EntryPhaseID: 1,
	}
}

func kinds(vs []Violation) []Kind {
	out := make([]Kind, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Kind)
	}
	return out
}

func TestValidate_ValidGraph(t *testing.T) {
	vs := Validate(validScenario())
	assert.Empty(t, vs)
	assert.NoError(t, AsError(vs))
}

func TestValidate_BrokenReferences(t *testing.T) {
	sc := validScenario()
	sc.Phases[0].SuccessTransitions = []int{9}
	sc.Phases[0].ConditionIDs = []int{1, 4}
	sc.EntryPhaseID = 1

	vs := Validate(sc)
	fatal := Fatal(vs)
	require.Len(t, fatal, 2)
	for _, v := range fatal {
		assert.Equal(t, KindReferential, v.Kind)
	}

	err := AsError(vs)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "2 validation errors")
}

func TestValidate_MissingEntry(t *testing.T) {
	sc := validScenario()
	sc.EntryPhaseID = 42

	vs := Validate(sc)
	assert.Equal(t, []Kind{KindReferential}, kinds(vs))
	assert.True(t, HasFatal(vs))
}

func TestValidate_CollectsEverything(t *testing.T) {
	sc := validScenario()
	// Orphan without edges, not closure: dead end AND unreachable.
	sc.Phases = append(sc.Phases, domain.Phase{ID: 4, Name: "limbo"})
	// Self loop on phase 2 also makes it stop being a dead end.
	sc.Phases[1].FailureTransitions = []int{2}

	vs := Validate(sc)
	assert.False(t, HasFatal(vs), "advisory violations must not block publication")
	assert.ElementsMatch(t, []Kind{KindSelfLoop, KindDeadEnd, KindUnreachable}, kinds(vs))
	assert.NoError(t, AsError(vs))
}

func TestValidate_DeadEndClosureIsLegal(t *testing.T) {
	sc := validScenario()
	sc.Phases[1].Closure = false

	vs := Validate(sc)
	require.Len(t, vs, 1)
	assert.Equal(t, KindDeadEnd, vs[0].Kind)
	assert.Equal(t, SeverityAdvisory, vs[0].Severity)
	assert.Equal(t, 2, vs[0].PhaseID)
}

func TestValidate_DuplicateAndEmpty(t *testing.T) {
	sc := validScenario()
	sc.Conditions = append(sc.Conditions, domain.Condition{ID: 1, Description: " "})

	vs := Validate(sc)
	assert.ElementsMatch(t, []Kind{KindDuplicateID, KindEmptyText}, kinds(vs))
	assert.True(t, HasFatal(vs))
}

func TestValidate_FatalSortedFirst(t *testing.T) {
	sc := validScenario()
	sc.Phases = append(sc.Phases, domain.Phase{ID: 4, Name: "limbo", SuccessTransitions: []int{77}})

	vs := Validate(sc)
	require.NotEmpty(t, vs)
	assert.Equal(t, SeverityFatal, vs[0].Severity)
}

func TestValidate_Nil(t *testing.T) {
	vs := Validate(nil)
	assert.True(t, HasFatal(vs))
}
