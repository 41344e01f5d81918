/*
Package scenaria is an engine for scripted training conversations.

A scenario is a directed graph of phases. Each phase tells a conversational agent how
to behave (its system prompt) and lists the conditions the trainee should satisfy
while the conversation is there. After every trainee utterance an external evaluator
returns a verdict: which conditions were satisfied and whether the phase succeeded,
failed, or should continue. The engine applies the verdict, follows the first success
or failure transition and ends the session when a closure phase is reached or a red
flag is raised.

# Architecture

The traversal core (internal/runtime) is pure: it takes a scenario, a session state and
a verdict and returns the next state. Everything else is an adapter behind a port:

  - ports.ScenarioLibrary: Loam repositories (Markdown, YAML, JSON) or memory.
  - ports.StateStore: memory, files or Redis.
  - ports.Evaluator: an HTTP endpoint, a subprocess, keyword rules or a script.

Authoring happens in pkg/authoring, whose Builder keeps the graph consistent while
phases and conditions are added and removed, and refuses to publish a scenario the
validator flags as broken.

# Usage

	eng, err := scenaria.New("./scenarios",
		scenaria.WithEvaluator(evaluator.NewClient("http://localhost:9000/evaluate")),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	state, err := eng.Start(ctx, "support-call", "")
	if err != nil {
		log.Fatal(err)
	}

	state, verdict, err := eng.Turn(ctx, state.SessionID, "Hi, my router keeps rebooting.")
	if domain.IsRetryable(err) {
		// The session is unchanged; the same utterance can be sent again.
	}
*/
package scenaria
