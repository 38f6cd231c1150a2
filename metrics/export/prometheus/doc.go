// Package prometheus exposes photoauth metrics through client_golang.
//
// [Collector] implements prometheus.Collector over an engine's metrics
// snapshot. Register it on a registry of your choosing and serve it with
// [Handler]. Counters are named photoauth_*_total; the two latency
// histograms are photoauth_resolve_latency_seconds and
// photoauth_hash_latency_seconds.
//
// # What this package must NOT do
//
//   - Register anything on the global Prometheus registry.
//   - Mutate engine state.
package prometheus
