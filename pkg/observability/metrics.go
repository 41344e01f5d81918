package observability

import (
	"context"
	"strconv"

	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine collectors.
type Metrics struct {
	PhaseEnters         *prometheus.CounterVec
	Turns               *prometheus.CounterVec
	ConditionsSatisfied prometheus.Counter
	SessionsEnded       *prometheus.CounterVec
	SessionTurns        prometheus.Histogram
}

// NewMetrics registers the collectors with reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PhaseEnters: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenaria_phase_enters_total",
			Help: "Total number of phase entries by phase name",
		}, []string{"phase"}),
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenaria_turns_total",
			Help: "Total number of applied turns by signal and whether the phase changed",
		}, []string{"signal", "transitioned"}),
		ConditionsSatisfied: factory.NewCounter(prometheus.CounterOpts{
			Name: "scenaria_conditions_satisfied_total",
			Help: "Total number of conditions newly accumulated by sessions",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scenaria_sessions_ended_total",
			Help: "Total number of ended sessions by reason",
		}, []string{"reason"}),
		SessionTurns: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scenaria_session_turns",
			Help:    "Number of turns a session took before ending",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
	}
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnPhaseEnter: func(ctx context.Context, ev *domain.PhaseEvent) {
			m.PhaseEnters.WithLabelValues(sanitize(ev.PhaseName)).Inc()
		},
		OnTurn: func(ctx context.Context, ev *domain.TurnEvent) {
			m.Turns.WithLabelValues(string(ev.Signal.Normalize()), strconv.FormatBool(ev.Transitioned)).Inc()
			m.ConditionsSatisfied.Add(float64(len(ev.NewConditions)))
		},
		OnSessionEnd: func(ctx context.Context, ev *domain.SessionEvent) {
			m.SessionsEnded.WithLabelValues(string(ev.Reason)).Inc()
			m.SessionTurns.Observe(float64(ev.Turns))
		},
	}
}

func sanitize(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
