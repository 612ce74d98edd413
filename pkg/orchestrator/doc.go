/*
Package orchestrator implements the restart state machine that rebuilds the
valuation replica cluster from source.

One cycle walks the step sequence stop → clean → build → start → verify,
strictly sequentially, each step bounded by its own timeout. The first
failing step aborts the cycle; no later step is recorded and nothing is
rolled back. Verify is purely observational — it records what it saw but
never decides the cycle outcome.

Cycles are serialized by a single-slot run lock: a trigger arriving while a
cycle is in flight is skipped and logged, never run concurrently. Every step
outcome is appended to the audit log and the finished cycle is persisted to
the history store.
*/
package orchestrator
