/*
Package domain contains the core models of the Scenaria engine.

It defines the conversation graph an author builds (Scenario, Phase, Condition), the
per-session runtime record (SessionState), the evaluator's per-turn judgment (TurnVerdict)
and the read-only Projection consumed by administrative views. The package is pure and free
of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Condition: A natural-language criterion attached to a phase, judged by an external evaluator.
  - Phase: A node of the conversation graph with priority-ordered success/failure transitions.
  - Scenario: The aggregate owning conditions and phases, plus the entry phase.
  - SessionState: The snapshot of one conversation (current phase, accumulated conditions, history).
  - TurnVerdict: The evaluator's decision for one user turn.
*/
package domain
