// Package internaldefs exposes stable metric name and bucket
// definitions shared by exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and
// OTel exporters emit identical metric names and bucket boundaries.
// Changing a definition changes every exporter at once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
