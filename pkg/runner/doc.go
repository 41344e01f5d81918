/*
Package runner implements the interactive conversation loop behind `scenaria play`.

It sits between a session.Manager and the outside world: every utterance read by
an IOHandler is turned into a persisted turn, either through the configured
Evaluator or through a verdict supplied by the caller, and the resulting phase
changes are presented back through the same handler.

# Key Components

  - Runner: drives one session until it ends, the input is exhausted or the context is cancelled.
  - IOHandler: decouples presentation from the loop.
  - TextHandler: interactive terminal usage, with markdown rendering.
  - JSONHandler: JSON-Lines for scripted drivers and tests.

# Usage

	r := runner.NewRunner(manager, evaluator,
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout, runner.WithTextHandlerRenderer(tui.NewRenderer()))),
	)

	state, err := r.Run(ctx, sc, "support", "session-1")

Lines starting with "/" are commands: /state prints the projection, /quit leaves
the session resumable.
*/
package runner
