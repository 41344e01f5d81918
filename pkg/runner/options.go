package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithProjectionAfterTurn presents the projection after every applied turn.
func WithProjectionAfterTurn(enabled bool) Option {
	return func(r *Runner) {
		r.ShowProjection = enabled
	}
}
