/*
Package session implements session management and persistence orchestration.

The traversal engine is pure; Manager is where a session's load, turn and save happen
as one unit. It keeps at most one turn in flight per session (rejecting the second with
domain.ErrTurnInFlight rather than queuing it), integrating local reference-counted
mutexes with an optional distributed lock for deployments with several replicas.
*/
package session
