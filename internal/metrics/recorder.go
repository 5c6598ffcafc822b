package metrics

import "time"

// ResultLabel enumerates per-file outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFailed  ResultLabel = "failed"
	ResultSkipped ResultLabel = "skipped"
)

// RunOutcomeLabel enumerates whole-run outcomes.
type RunOutcomeLabel string

const (
	RunSuccess  RunOutcomeLabel = "success"
	RunFailed   RunOutcomeLabel = "failed"
	RunAborted  RunOutcomeLabel = "aborted"
	RunCanceled RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for runs and per-file builds.
// Implementations may forward to Prometheus or any other backend.
type Recorder interface {
	ObserveFileBuildDuration(builder string, d time.Duration)
	IncFileResult(builder string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
	SetChangeSetSize(input, closure int)
	SetInFlight(n int)
	IncNotifyRetry()
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveFileBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncFileResult(string, ResultLabel)              {}
func (NoopRecorder) ObserveRunDuration(time.Duration)               {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)                  {}
func (NoopRecorder) SetChangeSetSize(int, int)                      {}
func (NoopRecorder) SetInFlight(int)                                {}
func (NoopRecorder) IncNotifyRetry()                                {}
