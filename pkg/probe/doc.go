/*
Package probe provides HTTP liveness probing and per-replica failure
accounting for the upstream pool.

A Tracker applies one policy to both signal sources: passive routing
failures observed by the proxy and active probes issued by the pool's
background prober. A replica becomes unhealthy after MaxFails consecutive
failures inside the FailTimeout rolling window and recovers on the first
subsequent success.
*/
package probe
