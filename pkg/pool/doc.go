/*
Package pool implements the load-balancing upstream pool that fronts the
valuation replica cluster.

The pool tracks per-replica health and shields clients from individual
replica failure:

 1. Request arrives → round-robin selection over healthy replicas
 2. Replica answers → failure streak resets
 3. Replica unreachable → failure counted, 502 to the caller
 4. MaxFails consecutive failures within FailTimeout → replica excluded
 5. Background prober hits /health so excluded replicas can recover
 6. A new restart cycle replaces the replica set and all health state

Two traffic classes are distinguished: liveness (/health, short budgets, no
buffering) and general (long budgets for slow valuation work, buffered with
a request body ceiling and per-client rate limiting).

With no healthy replicas every request fails fast with 502; the pool never
queues. The pool only observes and routes — creating and destroying replicas
is the orchestrator's job.
*/
package pool
