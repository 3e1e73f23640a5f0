// Package otel bridges goGuard engine metrics to OpenTelemetry.
//
// [Exporter] registers one observable counter per engine counter, plus
// per-bucket gauges for the authorize latency histogram, and reads the engine
// snapshot in a single callback.
//
// # What this package must NOT do
//
//   - Own the MeterProvider; callers configure readers and exporters.
//   - Mutate engine state.
package otel
