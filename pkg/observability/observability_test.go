package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/scenaria/internal/runtime"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenario() *domain.Scenario {
	return &domain.Scenario{
		Name:       "support",
		Conditions: []domain.Condition{{ID: 1, Description: "greets"}},
		Phases: []domain.Phase{
			{ID: 1, Name: "welcome", SuccessTransitions: []int{2}, ConditionIDs: []int{1}},
			{ID: 2, Name: "polite closure", Closure: true},
		},
		EntryPhaseID: 1,
	}
}

func TestMetrics_RecordsEngineEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	e := runtime.NewEngine(runtime.WithLifecycleHooks(m.Hooks()))
	ctx := context.Background()
	sc := scenario()

	state, err := e.Start(ctx, sc, "support", "s1")
	require.NoError(t, err)
	state, err = e.Apply(ctx, sc, state, domain.TurnVerdict{Signal: domain.SignalNone, SatisfiedConditionIDs: []int{1}}, "hi")
	require.NoError(t, err)
	_, err = e.Apply(ctx, sc, state, domain.TurnVerdict{Signal: domain.SignalSuccess}, "bye")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseEnters.WithLabelValues("welcome")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseEnters.WithLabelValues("polite closure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("none", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("success", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConditionsSatisfied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsEnded.WithLabelValues("closure")))

	n, err := testutil.GatherAndCount(reg, "scenaria_session_turns")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChain(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{OnTurn: func(ctx context.Context, ev *domain.TurnEvent) { order = append(order, "a") }}
	b := domain.LifecycleHooks{
		OnTurn:       func(ctx context.Context, ev *domain.TurnEvent) { order = append(order, "b") },
		OnSessionEnd: func(ctx context.Context, ev *domain.SessionEvent) { order = append(order, "end") },
	}

	hooks := observability.Chain(a, domain.LifecycleHooks{}, b)
	assert.Nil(t, hooks.OnPhaseEnter)

	hooks.OnTurn(context.Background(), &domain.TurnEvent{})
	hooks.OnSessionEnd(context.Background(), &domain.SessionEvent{})
	assert.Equal(t, []string{"a", "b", "end"}, order)
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	hooks := observability.LoggingHooks(logger)

	hooks.OnSessionEnd(context.Background(), &domain.SessionEvent{
		EventBase: domain.EventBase{SessionID: "s9"},
		Reason:    domain.EndReasonRedFlag,
		Turns:     4,
	})
	assert.Contains(t, buf.String(), "session_end")
	assert.Contains(t, buf.String(), "session_id=s9")
	assert.Contains(t, buf.String(), "reason=red_flag")
}
