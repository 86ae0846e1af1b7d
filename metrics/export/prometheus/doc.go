// Package prometheus exposes goSession metrics through a client_golang
// collector.
//
// [NewCollector] reads [goSession.Engine.MetricsSnapshot] on every scrape.
// Counter names are prefixed gosession_*_total; the single histogram is
// gosession_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register
//     the collector or mount [Collector.Handler].
//   - Mutate engine state.
package prometheus
