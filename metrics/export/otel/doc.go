// Package otel exports idforge engine metrics through an OpenTelemetry
// meter using observable instruments.
//
// [NewExporter] registers one callback that snapshots the engine on
// each collection. Counters map to Int64ObservableCounter; the latency
// histogram is flattened into per-bucket gauges because observable
// histograms are not part of the metric API.
package otel
