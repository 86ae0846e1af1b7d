// Package otel binds goSession counters and histograms to OpenTelemetry
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter for each counter and
// a bucket gauge labelled by "le" per histogram. A single callback reads
// [goSession.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
