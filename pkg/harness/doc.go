/*
Package harness implements the concurrent smoke-test tool used to confirm
cluster health after a restart cycle or ad hoc.

Given K target parcel identifiers it issues K valuation requests against the
upstream pool through a bounded worker pool, measures per-target latency,
and always reports exactly K pass/fail results plus a count summary. A pass
is an HTTP success whose body parses into a valuation summary; anything else
is a fail for that target alone.
*/
package harness
