// Package prometheus bridges idforge engine metrics into a
// prometheus/client_golang Collector.
//
// [NewCollector] accepts an [idforge.Engine] and implements
// prometheus.Collector over its metrics snapshot. Counter names are
// prefixed idforge_*_total; the single histogram is
// idforge_verify_latency_seconds. Callers register the collector in a
// registry of their choosing and mount promhttp themselves.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
