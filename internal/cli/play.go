package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/scenaria/internal/presentation/tui"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/runner"
)

// PlayOptions configures an interactive session.
type PlayOptions struct {
	ScenarioID string
	SessionID  string
	JSON       bool
	Projection bool
	// Fresh discards any stored state for SessionID before starting.
	Fresh bool
	// Renderer formats markdown in text mode. Defaults to plain passthrough.
	Renderer tui.Renderer
}

// Play runs one session of opts.ScenarioID over in/out until it ends, the input runs
// out or ctx is cancelled.
func Play(ctx context.Context, app *App, opts PlayOptions, in io.Reader, out io.Writer) (*domain.SessionState, error) {
	logger := app.Logger
	engine := app.Engine

	if opts.ScenarioID == "" {
		id, err := determineScenario(ctx, engine.Library(), app.Config.Scenarios)
		if err != nil {
			return nil, err
		}
		opts.ScenarioID = id
	}

	sc, err := engine.Scenario(ctx, opts.ScenarioID)
	if err != nil {
		return nil, err
	}
	violations, err := engine.Validate(ctx, opts.ScenarioID)
	if err != nil {
		return nil, err
	}
	for _, v := range violations {
		logger.Warn("scenario violation", "scenario", opts.ScenarioID, "kind", v.Kind, "severity", v.Severity, "message", v.Message)
	}

	if opts.Fresh && opts.SessionID != "" {
		if err := engine.Sessions().Delete(ctx, opts.SessionID); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to reset session: %w", err)
		}
	}
	// Resumed sessions keep walking the version they started on.
	if opts.SessionID != "" {
		if resumed, _, err := engine.SessionScenario(ctx, opts.SessionID); err == nil {
			sc = resumed
		} else if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
	}

	var handler runner.IOHandler
	if opts.JSON {
		jh := runner.NewJSONHandler(in, out)
		jh.Sanitizer = app.Sanitizer()
		handler = jh
	} else {
		renderer := opts.Renderer
		if renderer == nil {
			renderer = tui.Plain
		}
		handler = runner.NewTextHandler(in, out,
			runner.WithTextHandlerRenderer(runner.ContentRenderer(renderer)),
			runner.WithTextHandlerSanitizer(app.Sanitizer()),
		)
		if opts.SessionID != "" {
			printSystemMessage(out, "Session '%s' active.", opts.SessionID)
		}
	}

	r := runner.NewRunner(engine.Sessions(), engine.Evaluator(),
		runner.WithLogger(logger),
		runner.WithInputHandler(handler),
		runner.WithProjectionAfterTurn(opts.Projection),
	)
	state, err := r.Run(ctx, sc, opts.ScenarioID, opts.SessionID)
	if state != nil {
		logger.Info("session stopped",
			"session_id", state.SessionID,
			"phase", state.CurrentPhaseID,
			"turn", state.Turn,
			"ended", state.Ended,
		)
	}
	return state, err
}

// PhaseName returns the name of the phase state sits in, or its id when the scenario
// no longer has it.
func PhaseName(sc *domain.Scenario, state *domain.SessionState) string {
	if state == nil {
		return ""
	}
	if p := sc.Phase(state.CurrentPhaseID); p != nil {
		return p.Name
	}
	return fmt.Sprint(state.CurrentPhaseID)
}
