// Package build provides the canonical build execution pipeline.
//
// DefaultBuildService wires the change-set resolver, the dispatcher and the
// report aggregator around a manifest store. A run that finishes with failed
// files returns an error wrapping ErrBuildFailed, classified as
// CategoryBuild, so the CLI maps it to a non-zero exit code; setup and
// persistence failures are returned as fatal classified errors.
//
// Runs must not overlap on the same manifest: the watch and daemon commands
// submit them through the single-worker queue in build/queue.
package build
