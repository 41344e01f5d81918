package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/ports"
	"github.com/aretw0/scenaria/pkg/session"
)

// Runner drives one conversation session through an IOHandler.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdin/stdout.
	Handler IOHandler

	// Logger is used for internal debug logging.
	Logger *slog.Logger

	// ShowProjection presents the projection after each turn.
	ShowProjection bool

	sessions  *session.Manager
	evaluator ports.Evaluator
}

// NewRunner creates a Runner. evaluator may be nil, in which case every input must
// carry its own verdict.
func NewRunner(sessions *session.Manager, evaluator ports.Evaluator, opts ...Option) *Runner {
	r := &Runner{
		Logger:    logging.NewNop(),
		sessions:  sessions,
		evaluator: evaluator,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(nil, nil)
	}
	return r
}

// Run starts or resumes sessionID and loops until the session ends, the input is
// exhausted, the user types /quit or ctx is cancelled. The last persisted state is
// returned in every case; only cancellation and non retryable failures are errors.
func (r *Runner) Run(ctx context.Context, sc *domain.Scenario, scenarioID, sessionID string) (*domain.SessionState, error) {
	state, err := r.sessions.Start(ctx, sc, scenarioID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	logger := logging.ForSession(r.Logger, state)
	logger.Debug("runner started", logging.KeyPhaseID, state.CurrentPhaseID, "turn", state.Turn)

	if state.Ended {
		return state, r.Handler.Present(ctx, Frame{Kind: FrameEnded, Scenario: sc, State: state})
	}
	if err := r.presentPhase(ctx, sc, state); err != nil {
		return state, err
	}

	for !state.Ended {
		in, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("runner input exhausted")
				return state, nil
			}
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			return state, fmt.Errorf("input error: %w", err)
		}

		if strings.HasPrefix(in.Utterance, "/") && in.Verdict == nil {
			quit, err := r.command(ctx, sc, state, in.Utterance)
			if err != nil {
				return state, err
			}
			if quit {
				return state, nil
			}
			continue
		}

		next, verdict, err := r.turn(ctx, sc, state.SessionID, in)
		if err != nil {
			if domain.IsRetryable(err) {
				logger.Warn("turn failed, session unchanged", logging.KeyPhaseID, state.CurrentPhaseID, "err", err)
				if err := r.Handler.SystemOutput(ctx, fmt.Sprintf("turn not applied: %v. Please try again.", err)); err != nil {
					return state, err
				}
				continue
			}
			return state, err
		}

		if err := r.Handler.Present(ctx, Frame{Kind: FrameVerdict, Scenario: sc, State: next, Verdict: &verdict}); err != nil {
			return next, err
		}
		if next.CurrentPhaseID != state.CurrentPhaseID {
			if err := r.presentPhase(ctx, sc, next); err != nil {
				return next, err
			}
		}
		if r.ShowProjection && !next.Ended {
			if err := r.presentProjection(ctx, sc, next); err != nil {
				return next, err
			}
		}
		state = next
	}

	return state, r.Handler.Present(ctx, Frame{Kind: FrameEnded, Scenario: sc, State: state})
}

func (r *Runner) turn(ctx context.Context, sc *domain.Scenario, sessionID string, in Input) (*domain.SessionState, domain.TurnVerdict, error) {
	if in.Verdict != nil {
		next, err := r.sessions.Apply(ctx, sc, sessionID, *in.Verdict, in.Utterance)
		return next, *in.Verdict, err
	}
	if r.evaluator == nil {
		return nil, domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{Cause: errors.New("no evaluator configured")}
	}
	return r.sessions.Turn(ctx, r.evaluator, sc, sessionID, in.Utterance)
}

// command handles slash commands. It reports whether the loop should stop.
func (r *Runner) command(ctx context.Context, sc *domain.Scenario, state *domain.SessionState, line string) (bool, error) {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true, r.Handler.SystemOutput(ctx, fmt.Sprintf("session %s saved, resume it with the same id", state.SessionID))
	case "/state":
		return false, r.presentProjection(ctx, sc, state)
	case "/help":
		return false, r.Handler.SystemOutput(ctx, "commands: /state, /quit")
	default:
		return false, r.Handler.SystemOutput(ctx, fmt.Sprintf("unknown command %q, try /help", line))
	}
}

func (r *Runner) presentPhase(ctx context.Context, sc *domain.Scenario, state *domain.SessionState) error {
	return r.Handler.Present(ctx, Frame{Kind: FramePhase, Scenario: sc, State: state, Phase: sc.Phase(state.CurrentPhaseID)})
}

func (r *Runner) presentProjection(ctx context.Context, sc *domain.Scenario, state *domain.SessionState) error {
	proj := domain.NewProjection(sc, state)
	return r.Handler.Present(ctx, Frame{Kind: FrameProjection, Scenario: sc, State: state, Projection: &proj})
}
