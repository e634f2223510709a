/*
Package metrics provides Prometheus metrics and health endpoints for the
Zoidberg daemon.

Counters cover the full event path (received, processed, failed, requeued,
parse errors), action invocations, SSH activations, stream disconnects and
config reloads. The /health endpoint reports per-source connection state:
the daemon is "degraded" while any configured gerrit is disconnected and
"healthy" otherwise.

Metrics are registered at package init and served when the daemon is
started with --metrics-addr:

	http.Handle("/metrics", metrics.Handler())
	http.Handle("/health", metrics.HealthHandler())
*/
package metrics
