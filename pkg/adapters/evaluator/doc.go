/*
Package evaluator provides implementations of ports.Evaluator.

The evaluator is the external component that reads the user's utterance together with the
current phase and returns a domain.TurnVerdict. The engine never interprets natural language
itself, so every deployment plugs one of these in:

  - Client posts the evaluation request to a decision service over HTTP.
  - Scripted replays a fixed queue of verdicts (tests, demos).
  - Rules matches keywords in the latest utterance (offline play).

All of them map failures onto the domain taxonomy: payloads that do not decode into a verdict are
*domain.SchemaError, transport problems and timeouts are *domain.EvaluatorUnavailableError.
*/
package evaluator
