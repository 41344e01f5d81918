package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/scenaria/internal/runtime"
	"github.com/aretw0/scenaria/pkg/adapters/evaluator"
	"github.com/aretw0/scenaria/pkg/adapters/memory"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/runner"
	"github.com/aretw0/scenaria/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func support() *domain.Scenario {
	return &domain.Scenario{
		Name:       "support",
		Conditions: []domain.Condition{{ID: 1, Description: "greets"}, {ID: 2, Description: "states the problem"}},
		Phases: []domain.Phase{
			{ID: 1, Name: "welcome", SystemPrompt: "Say hi.", SuccessTransitions: []int{2}, ConditionIDs: []int{1}},
			{ID: 2, Name: "problem", SuccessTransitions: []int{3}, ConditionIDs: []int{2}},
			{ID: 3, Name: "polite closure", Closure: true},
		},
		EntryPhaseID: 1,
	}
}

func newManager() *session.Manager {
	return session.NewManager(memory.NewStore(), runtime.NewEngine())
}

func TestRunner_PlaysToClosure(t *testing.T) {
	ev := evaluator.NewScripted(
		domain.TurnVerdict{Signal: domain.SignalSuccess, SatisfiedConditionIDs: []int{1}},
		domain.TurnVerdict{Signal: domain.SignalNone},
		domain.TurnVerdict{Signal: domain.SignalSuccess, SatisfiedConditionIDs: []int{2}},
	)
	out := &bytes.Buffer{}
	r := runner.NewRunner(newManager(), ev,
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("hello\numm\nmy router\nignored\n"), out)),
	)

	state, err := r.Run(context.Background(), support(), "support", "s1")
	require.NoError(t, err)
	assert.True(t, state.Ended)
	assert.Equal(t, domain.EndReasonClosure, state.EndReason)
	assert.Equal(t, []int{1, 2}, state.AccumulatedConditions)
	assert.Equal(t, []string{"hello", "umm", "my router"}, state.Utterances)
	assert.Equal(t, 0, ev.Remaining())

	text := out.String()
	assert.Contains(t, text, "## welcome")
	assert.Contains(t, text, "## problem")
	assert.Contains(t, text, "Conversation ended")
}

func TestRunner_EvaluatorFailureIsRetried(t *testing.T) {
	ev := evaluator.NewScripted()
	mgr := newManager()
	out := &bytes.Buffer{}
	r := runner.NewRunner(mgr, ev,
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("hello\n"), out)),
	)

	state, err := r.Run(context.Background(), support(), "support", "s1")
	require.NoError(t, err, "running out of input is not an error")
	assert.False(t, state.Ended)
	assert.Empty(t, state.Utterances, "a failed turn leaves the session untouched")
	assert.Contains(t, out.String(), "turn not applied")
}

func TestRunner_QuitKeepsSessionResumable(t *testing.T) {
	mgr := newManager()
	ev := evaluator.NewScripted(
		domain.TurnVerdict{Signal: domain.SignalSuccess, SatisfiedConditionIDs: []int{1}},
		domain.TurnVerdict{Signal: domain.SignalSuccess},
	)

	first := runner.NewRunner(mgr, ev, runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("hi\n/quit\nlost\n"), &bytes.Buffer{})))
	state, err := first.Run(context.Background(), support(), "support", "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentPhaseID)

	second := runner.NewRunner(mgr, ev, runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("it is broken\n"), &bytes.Buffer{})))
	state, err = second.Run(context.Background(), support(), "support", "s1")
	require.NoError(t, err)
	assert.True(t, state.Ended)
	assert.Equal(t, []string{"hi", "it is broken"}, state.Utterances)
}

func TestRunner_StateCommand(t *testing.T) {
	out := &bytes.Buffer{}
	r := runner.NewRunner(newManager(), nil,
		runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("/state\n/nope\n"), out)),
	)
	_, err := r.Run(context.Background(), support(), "support", "s1")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Satisfied conditions")
	assert.Contains(t, out.String(), "unknown command")
}

func TestRunner_JSONVerdictsWithoutEvaluator(t *testing.T) {
	input := strings.Join([]string{
		`{"utterance": "hello", "verdict": {"signal": "success", "satisfied_condition_ids": [1]}}`,
		`{"utterance": "all good", "verdict": {"signal": "success", "satisfied_condition_ids": [2]}}`,
	}, "\n")
	out := &bytes.Buffer{}
	r := runner.NewRunner(newManager(), nil,
		runner.WithInputHandler(runner.NewJSONHandler(strings.NewReader(input), out)),
		runner.WithProjectionAfterTurn(true),
	)

	state, err := r.Run(context.Background(), support(), "support", "s1")
	require.NoError(t, err)
	assert.True(t, state.Ended)

	var kinds []string
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var frame map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &frame))
		kinds = append(kinds, frame["type"].(string))
	}
	assert.Equal(t, []string{
		"phase",
		"verdict", "phase", "projection",
		"verdict", "phase",
		"ended",
	}, kinds)
}

func TestRunner_EndedSessionOnlyReports(t *testing.T) {
	mgr := newManager()
	sc := support()
	_, err := mgr.Start(context.Background(), sc, "support", "s1")
	require.NoError(t, err)
	sc.RedFlags = []string{"abuse"}
	_, err = mgr.Apply(context.Background(), sc, "s1", domain.TurnVerdict{RedFlags: []string{"abuse"}}, "x")
	require.NoError(t, err)

	out := &bytes.Buffer{}
	r := runner.NewRunner(mgr, nil, runner.WithInputHandler(runner.NewTextHandler(strings.NewReader("more\n"), out)))
	state, err := r.Run(context.Background(), sc, "support", "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.EndReasonRedFlag, state.EndReason)
	assert.Contains(t, out.String(), "red_flag")
}
