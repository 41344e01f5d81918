package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/aretw0/scenaria/pkg/domain"
)

// Keys shared by every session-scoped record.
const (
	KeySessionID       = "session_id"
	KeyScenario        = "scenario"
	KeyScenarioVersion = "scenario_version"
	KeyPhaseID         = "phase_id"
)

// New creates the application logger on Stderr, keeping Stdout free for the
// conversation UI and JSON-RPC.
func New(level slog.Level) *slog.Logger {
	return NewTo(os.Stderr, level)
}

// NewTo creates a text logger writing to w. The "error" key is renamed to "err".
func NewTo(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ForSession binds the identity of a session to logger. The phase is left out since it
// changes every turn; callers add KeyPhaseID per record.
func ForSession(logger *slog.Logger, state *domain.SessionState) *slog.Logger {
	if state == nil {
		return logger
	}
	return logger.With(
		KeySessionID, state.SessionID,
		KeyScenario, state.ScenarioID,
		KeyScenarioVersion, state.ScenarioVersion,
	)
}
