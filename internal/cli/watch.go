package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/scenaria/internal/validator"
)

// WatchLibrary revalidates every scenario the library reports as changed and prints
// the outcome to w. It blocks until ctx is done or the watcher stops.
func WatchLibrary(ctx context.Context, app *App, w io.Writer) error {
	events, err := app.Engine.Watch(ctx)
	if err != nil {
		return err
	}
	app.Logger.Info("watching scenarios", "path", app.Config.Scenarios)

	for {
		select {
		case <-ctx.Done():
			return nil
		case id, ok := <-events:
			if !ok {
				return nil
			}
			Revalidate(ctx, app, id, w)
		}
	}
}

// Revalidate checks one scenario and reports it. Failures to load are reported, not returned,
// so a half-written file does not stop the watcher.
func Revalidate(ctx context.Context, app *App, id string, w io.Writer) {
	violations, err := app.Engine.Validate(ctx, id)
	if err != nil {
		app.Logger.Warn("scenario reload failed", "scenario", id, "err", err)
		printSystemMessage(w, "Change detected in '%s': %v", id, err)
		return
	}
	switch {
	case validator.HasFatal(violations):
		printSystemMessage(w, "Change detected in '%s': %d fatal violation(s), sessions cannot start.", id, len(validator.Fatal(violations)))
	case len(violations) > 0:
		printSystemMessage(w, "Change detected in '%s': valid with %d advisory violation(s).", id, len(violations))
	default:
		printSystemMessage(w, "Change detected in '%s': valid.", id)
	}
	for _, v := range violations {
		fmt.Fprintf(w, "  - %s\n", FormatViolation(v))
	}
}

// FormatViolation renders one violation on a single line.
func FormatViolation(v validator.Violation) string {
	if v.PhaseID != 0 {
		return fmt.Sprintf("[%s] %s (phase %d): %s", v.Severity, v.Kind, v.PhaseID, v.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Kind, v.Message)
}
