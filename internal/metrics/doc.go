// Package metrics provides the observability hooks for build runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	svc := build.NewBuildService(cfg).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// One-shot CLI runs export the registry with WriteTextfile; the watch and
// daemon commands serve it over HTTP with HTTPHandler.
package metrics
