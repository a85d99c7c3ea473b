// Package observability exports job system telemetry.
//
// Metrics implements api.Observer with OpenTelemetry instruments; Collector
// exposes scheduler statistics to Prometheus. Both are optional and wired by
// the facade.
package observability
