/*
Package metrics defines the harness's Prometheus metrics and the health/
readiness HTTP handlers that back the status surface.

Metrics are package-level variables registered against the default
registry at init and exposed via Handler() for scraping. Gauges track
pool occupancy, memory-gate usage, and per-computation output queue
depth; counters track RPC outcomes, retries, and reported exceptions.

HealthChecker in health.go tracks coarse up/down status for the
workservice client, dispatch loop, and commit aggregator, independent
of Prometheus, for the /health and /ready handlers (HealthHandler and
ReadyHandler); LivenessHandler backs /live.
*/
package metrics
