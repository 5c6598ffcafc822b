package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/retry"
)

// fakeService records requests and answers from a scripted list of errors.
type fakeService struct {
	mu       sync.Mutex
	requests []build.BuildRequest
	errs     []error
	running  int
	overlap  bool
	block    chan struct{}
}

func (f *fakeService) Run(ctx context.Context, req build.BuildRequest) (*build.BuildResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.running++
	if f.running > 1 {
		f.overlap = true
	}
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	block := f.block
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return &build.BuildResult{Status: build.BuildStatusCancelled, Token: req.Token}, ctx.Err()
		}
	}
	status := build.BuildStatusSuccess
	if err != nil {
		status = build.BuildStatusFailed
	}
	return &build.BuildResult{Status: status, Token: req.Token}, err
}

func (f *fakeService) calls() []build.BuildRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]build.BuildRequest(nil), f.requests...)
}

func waitSettled(t *testing.T, bq *BuildQueue, id string) *BuildJob {
	t.Helper()
	var job *BuildJob
	require.Eventually(t, func() bool {
		j, ok := bq.JobSnapshot(id)
		if !ok || j.CompletedAt == nil {
			return false
		}
		job = j
		return true
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestProcessJob_Success(t *testing.T) {
	svc := &fakeService{}
	bq := NewBuildQueue(4, svc)

	job := &BuildJob{ID: "job-1", Type: BuildTypeManual, TypedMeta: &BuildJobMetadata{Paths: []string{"a.js"}}}
	bq.processJob(t.Context(), job)

	assert.Equal(t, BuildStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	assert.Equal(t, 1, job.Attempts)
	require.NotNil(t, job.CompletedAt)

	calls := svc.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "job-1", calls[0].Token)
	assert.Equal(t, []string{"a.js"}, calls[0].Paths)
	assert.Equal(t, "manual", calls[0].Trigger)

	snap, ok := bq.JobSnapshot("job-1")
	require.True(t, ok)
	assert.Equal(t, BuildStatusCompleted, snap.Status)
}

func TestProcessJob_FailureIsNotRetried(t *testing.T) {
	failed := ferrors.WrapError(build.ErrBuildFailed, ferrors.CategoryBuild, "build finished with 1 errors").Build()
	svc := &fakeService{errs: []error{failed}}
	bq := NewBuildQueue(4, svc)
	bq.ConfigureRetry(retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 3))

	job := &BuildJob{ID: "job-2", Type: BuildTypeWatch}
	bq.processJob(t.Context(), job)

	assert.Equal(t, BuildStatusFailed, job.Status)
	assert.Contains(t, job.Error, "build finished with 1 errors")
	assert.Len(t, svc.calls(), 1)
}

func TestProcessJob_RetriesTransientErrors(t *testing.T) {
	transient := ferrors.NetworkError("nats unavailable").Build()
	svc := &fakeService{errs: []error{transient, transient}}
	bq := NewBuildQueue(4, svc)
	bq.ConfigureRetry(retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 3))

	job := &BuildJob{ID: "job-3", Type: BuildTypeScheduled}
	bq.processJob(t.Context(), job)

	assert.Equal(t, BuildStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Len(t, svc.calls(), 3)
}

func TestEnqueue_Validation(t *testing.T) {
	bq := NewBuildQueue(1, &fakeService{})

	require.Error(t, bq.Enqueue(nil))
	require.Error(t, bq.Enqueue(&BuildJob{}))

	require.NoError(t, bq.Enqueue(&BuildJob{ID: "one"}))
	assert.Equal(t, 1, bq.Length())
	assert.ErrorIs(t, bq.Enqueue(&BuildJob{ID: "two"}), ErrQueueFull)
}

func TestQueue_RunsJobsSeriallyInOrder(t *testing.T) {
	svc := &fakeService{}
	bq := NewBuildQueue(8, svc)

	var mu sync.Mutex
	var completed []string
	bq.OnComplete(func(j *BuildJob) {
		mu.Lock()
		completed = append(completed, j.ID)
		mu.Unlock()
	})

	ids := make([]string, 0, 3)
	for _, p := range []string{"a.js", "b.js", "c.js"} {
		id, err := bq.Submit(BuildTypeWatch, []string{p})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	bq.Start(t.Context())
	defer bq.Stop(context.Background())

	for _, id := range ids {
		job := waitSettled(t, bq, id)
		assert.Equal(t, BuildStatusCompleted, job.Status)
	}

	calls := svc.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a.js"}, calls[0].Paths)
	assert.Equal(t, []string{"c.js"}, calls[2].Paths)
	assert.False(t, svc.overlap)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completed) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, bq.History(), 3)
}

func TestQueue_StopCancelsRunningJob(t *testing.T) {
	svc := &fakeService{block: make(chan struct{})}
	bq := NewBuildQueue(4, svc)
	bq.Start(t.Context())

	id, err := bq.Submit(BuildTypeManual, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(bq.GetActiveJobs()) == 1 }, time.Second, 5*time.Millisecond)

	bq.Stop(context.Background())

	job, ok := bq.JobSnapshot(id)
	require.True(t, ok)
	assert.Equal(t, BuildStatusCancelled, job.Status)
	assert.ErrorIs(t, bq.Enqueue(&BuildJob{ID: "late"}), ErrQueueClosed)
}

func TestAddToHistory_Trims(t *testing.T) {
	bq := NewBuildQueue(1, &fakeService{})
	bq.historySize = 2
	for _, id := range []string{"a", "b", "c"} {
		bq.addToHistory(&BuildJob{ID: id})
	}
	hist := bq.History()
	require.Len(t, hist, 2)
	assert.Equal(t, "b", hist[0].ID)
	assert.Equal(t, "c", hist[1].ID)
}
