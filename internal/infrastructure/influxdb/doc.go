// Package influxdb records switch state transitions to InfluxDB v2 for
// usage and energy analysis (which rooms leave lights on, how often
// auto-off fires, how long projectors run).
//
// Metrics are optional: when InfluxDB is disabled in config the rest of the
// service runs unchanged. Writes are non-blocking and batched; a broker or
// server outage costs data points, never schedule executions.
package influxdb
