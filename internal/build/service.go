// Package build provides the canonical build execution pipeline.
// All execution paths (CLI build, watch, daemon, tests) route through BuildService.
package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

// BuildService is the canonical interface for executing incremental builds.
type BuildService interface {
	// Run resolves the change set, builds it and persists the outcome.
	Run(ctx context.Context, req BuildRequest) (*BuildResult, error)
}

// BuildRequest contains all inputs required to execute a run.
type BuildRequest struct {
	// Paths are source-root relative files or directories. Empty means
	// everything.
	Paths []string

	// Token names the report. A UUID is generated when empty.
	Token string

	// Trigger describes what started the run (manual, watch, scheduled).
	Trigger string
}

// BuildResult contains the outcome of a run.
type BuildResult struct {
	// Status indicates overall run outcome.
	Status BuildStatus

	// Token identifies the stored report.
	Token string

	// Trigger is copied from the request.
	Trigger string

	// Report is the finalized report. Nil when the run aborted before
	// dispatch.
	Report *report.Report

	// Files is the size of the resolved change set.
	Files int

	// Duration is the total execution time.
	Duration time.Duration

	// StartTime is when the run started.
	StartTime time.Time

	// EndTime is when the run completed.
	EndTime time.Time
}

// BuildStatus represents the outcome of a run.
type BuildStatus string

const (
	// BuildStatusSuccess indicates every file built (warnings allowed).
	BuildStatusSuccess BuildStatus = "success"

	// BuildStatusFailed indicates at least one file failed.
	BuildStatusFailed BuildStatus = "failed"

	// BuildStatusAborted indicates a fatal setup or persistence error.
	BuildStatusAborted BuildStatus = "aborted"

	// BuildStatusCancelled indicates the run was cancelled.
	BuildStatusCancelled BuildStatus = "cancelled"
)

// IsTerminal returns true if the status represents a final state.
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusSuccess || s == BuildStatusFailed ||
		s == BuildStatusAborted || s == BuildStatusCancelled
}

// IsSuccess returns true if the run completed without failed files.
func (s BuildStatus) IsSuccess() bool {
	return s == BuildStatusSuccess
}

// Observer is notified after every run that produced a report.
type Observer interface {
	RunFinished(ctx context.Context, result *BuildResult) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, result *BuildResult) error

func (f ObserverFunc) RunFinished(ctx context.Context, result *BuildResult) error {
	return f(ctx, result)
}
