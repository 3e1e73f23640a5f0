// Package prometheus exposes goGuard engine metrics as a Prometheus collector.
//
// [Exporter] implements prometheus.Collector over the engine snapshot. Counter
// names are prefixed goguard_*_total; the single histogram is
// goguard_authorize_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry; callers pick the registry.
//   - Mutate engine state.
package prometheus
