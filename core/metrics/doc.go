// Package metrics exposes Prometheus collectors for sync passes and device calls.
//
// Collectors are registered on the default registry at init; the HTTP server
// serves them on /metrics. Recorder plugs the collectors into the
// orchestrator as a reconcile.Observer.
package metrics
