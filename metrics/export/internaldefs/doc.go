// Package internaldefs holds the metric names and bucket boundaries shared by
// the exporter packages.
//
// Counter and histogram definitions live here so that both the Prometheus and
// OTel exporters publish identical names. Changes here affect all exporters
// at once.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
