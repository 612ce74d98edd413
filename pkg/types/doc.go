/*
Package types defines the core data structures shared across the lifecycle
tooling.

It contains the domain model for restart orchestration (RestartCycle,
StepResult), upstream routing (Replica) and cluster validation
(ValidationRun, TargetResult), plus the wire types of the downstream
valuation service contract.

All types are designed to be:
  - Serializable (JSON)
  - Immutable once a cycle or run has completed
  - Self-documenting (clear field names and comments)
*/
package types
