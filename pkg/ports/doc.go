/*
Package ports defines the driven ports (interfaces) for the Scenaria engine.

These interfaces decouple the traversal core from external implementations, allowing
the engine to work with various evaluators, storage backends and scenario sources.

# Key Interfaces

  - Evaluator: Judges one user turn and returns a TurnVerdict (e.g., an HTTP decision service).
  - StateStore: Responsible for persisting and loading SessionState.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
  - ScenarioLibrary: Resolves published scenarios by id (e.g., from Loam or Memory).
  - Engine: The stateless traversal core consumed by the HTTP and MCP adapters.
*/
package ports
