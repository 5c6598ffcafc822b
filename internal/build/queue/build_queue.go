package queue

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/retry"
)

// BuildType represents what triggered a build job.
type BuildType string

const (
	BuildTypeManual    BuildType = "manual"    // Requested from the CLI
	BuildTypeWatch     BuildType = "watch"     // Filesystem change
	BuildTypeScheduled BuildType = "scheduled" // Interval or cron tick
)

// BuildStatus represents the current status of a build job.
type BuildStatus string

const (
	BuildStatusQueued    BuildStatus = "queued"
	BuildStatusRunning   BuildStatus = "running"
	BuildStatusCompleted BuildStatus = "completed"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "canceled"
)

var (
	ErrQueueFull   = stdErrors.New("build queue is full")
	ErrQueueClosed = stdErrors.New("build queue is stopped")
)

// BuildJob represents a single run request in the queue.
type BuildJob struct {
	ID          string        `json:"id"`
	Type        BuildType     `json:"type"`
	Status      BuildStatus   `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Attempts    int           `json:"attempts,omitempty"`
	Error       string        `json:"error,omitempty"`

	TypedMeta *BuildJobMetadata `json:"typed_meta,omitempty"`

	cancel context.CancelFunc `json:"-"`
}

// BuildQueue runs build jobs one at a time, in submission order.
// A single worker guarantees two runs never share the manifest.
type BuildQueue struct {
	jobs        chan *BuildJob
	maxSize     int
	mu          sync.RWMutex
	active      map[string]*BuildJob
	history     []*BuildJob
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	service     build.BuildService

	retryPolicy retry.Policy
	onComplete  func(*BuildJob)
}

// NewBuildQueue creates a queue holding at most maxSize pending jobs.
func NewBuildQueue(maxSize int, service build.BuildService) *BuildQueue {
	if maxSize <= 0 {
		maxSize = 16
	}
	if service == nil {
		panic("NewBuildQueue: build service is required")
	}

	return &BuildQueue{
		jobs:        make(chan *BuildJob, maxSize),
		maxSize:     maxSize,
		active:      make(map[string]*BuildJob),
		history:     make([]*BuildJob, 0),
		historySize: 50,
		stopChan:    make(chan struct{}),
		service:     service,
		retryPolicy: retry.NewPolicy(retry.ModeFixed, 0, 0, 0),
	}
}

// ConfigureRetry sets the policy applied to retryable run errors.
func (bq *BuildQueue) ConfigureRetry(p retry.Policy) {
	bq.retryPolicy = p
}

// OnComplete registers a callback invoked after every job settles.
func (bq *BuildQueue) OnComplete(fn func(*BuildJob)) {
	bq.onComplete = fn
}

// Start begins processing jobs.
func (bq *BuildQueue) Start(ctx context.Context) {
	slog.Info("Starting build queue", slog.Int("max_size", bq.maxSize))
	bq.wg.Add(1)
	go bq.worker(ctx)
}

// Stop cancels the running job and waits for the worker to exit.
func (bq *BuildQueue) Stop(_ context.Context) {
	bq.stopOnce.Do(func() { close(bq.stopChan) })

	bq.mu.Lock()
	for _, job := range bq.active {
		if job.cancel != nil {
			job.cancel()
		}
	}
	bq.mu.Unlock()

	bq.wg.Wait()
}

// Length returns the number of pending jobs.
func (bq *BuildQueue) Length() int {
	return len(bq.jobs)
}

// GetActiveJobs returns copies of the currently running jobs.
func (bq *BuildQueue) GetActiveJobs() []*BuildJob {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	active := make([]*BuildJob, 0, len(bq.active))
	for _, job := range bq.active {
		cp := *job
		active = append(active, &cp)
	}
	return active
}

// Submit enqueues a run of paths and returns the job ID, which doubles as
// the report token.
func (bq *BuildQueue) Submit(typ BuildType, paths []string) (string, error) {
	job := &BuildJob{
		ID:        uuid.NewString(),
		Type:      typ,
		CreatedAt: time.Now(),
		TypedMeta: &BuildJobMetadata{Paths: paths},
	}
	if err := bq.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Enqueue adds a build job to the queue.
func (bq *BuildQueue) Enqueue(job *BuildJob) error {
	if job == nil {
		return stdErrors.New("job cannot be nil")
	}
	if job.ID == "" {
		return stdErrors.New("job ID is required")
	}
	select {
	case <-bq.stopChan:
		return ErrQueueClosed
	default:
	}

	job.Status = BuildStatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case bq.jobs <- job:
		slog.Debug("Build job queued", logfields.JobID(job.ID), logfields.JobType(string(job.Type)))
		return nil
	default:
		return ErrQueueFull
	}
}

// JobSnapshot returns a copy of a job (active first, then history).
func (bq *BuildQueue) JobSnapshot(id string) (*BuildJob, bool) {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	if j, ok := bq.active[id]; ok {
		cp := *j
		return &cp, true
	}
	for _, j := range bq.history {
		if j.ID == id {
			cp := *j
			return &cp, true
		}
	}
	return nil, false
}

// History returns copies of settled jobs, oldest first.
func (bq *BuildQueue) History() []*BuildJob {
	bq.mu.RLock()
	defer bq.mu.RUnlock()

	out := make([]*BuildJob, 0, len(bq.history))
	for _, j := range bq.history {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

func (bq *BuildQueue) worker(ctx context.Context) {
	defer bq.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-bq.stopChan:
			return
		case job := <-bq.jobs:
			if job != nil {
				bq.processJob(ctx, job)
			}
		}
	}
}

func (bq *BuildQueue) processJob(ctx context.Context, job *BuildJob) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	startTime := time.Now()
	bq.mu.Lock()
	job.cancel = cancel
	job.StartedAt = &startTime
	job.Status = BuildStatusRunning
	bq.active[job.ID] = job
	bq.mu.Unlock()

	slog.Info("Build job started", logfields.JobID(job.ID), logfields.JobType(string(job.Type)))

	err := bq.executeBuild(jobCtx, job)

	bq.markJobCompleted(job, err)
	if bq.onComplete != nil {
		cp, _ := bq.JobSnapshot(job.ID)
		bq.onComplete(cp)
	}
}

func (bq *BuildQueue) markJobCompleted(job *BuildJob, err error) {
	endTime := time.Now()
	bq.mu.Lock()
	defer bq.mu.Unlock()

	job.CompletedAt = &endTime
	if job.StartedAt != nil {
		job.Duration = endTime.Sub(*job.StartedAt)
	}
	job.cancel = nil
	delete(bq.active, job.ID)
	bq.addToHistory(job)

	meta := EnsureTypedMeta(job)
	switch {
	case err == nil:
		job.Status = BuildStatusCompleted
	case meta.Result != nil && meta.Result.Status == build.BuildStatusCancelled:
		job.Status = BuildStatusCancelled
		job.Error = err.Error()
	default:
		job.Status = BuildStatusFailed
		job.Error = err.Error()
	}
	slog.Info("Build job finished",
		logfields.JobID(job.ID),
		logfields.Status(string(job.Status)),
		logfields.Duration(job.Duration))
}

func (bq *BuildQueue) addToHistory(job *BuildJob) {
	bq.history = append(bq.history, job)
	if len(bq.history) > bq.historySize {
		copy(bq.history, bq.history[len(bq.history)-bq.historySize:])
		bq.history = bq.history[:bq.historySize]
	}
}

func (bq *BuildQueue) executeBuild(ctx context.Context, job *BuildJob) error {
	meta := EnsureTypedMeta(job)
	req := build.BuildRequest{
		Paths:   meta.Paths,
		Token:   job.ID,
		Trigger: string(job.Type),
	}

	return bq.retryPolicy.Do(ctx, func(attempt int) error {
		bq.mu.Lock()
		job.Attempts = attempt
		bq.mu.Unlock()
		res, err := bq.service.Run(ctx, req)
		bq.mu.Lock()
		meta.Result = res
		bq.mu.Unlock()
		return err
	}, func(n int, delay time.Duration, err error) {
		slog.Warn("Transient build error, retrying",
			logfields.JobID(job.ID),
			slog.Int("retry", n),
			slog.Int("max_retries", bq.retryPolicy.MaxRetries),
			slog.Duration("delay", delay),
			logfields.Error(err))
	})
}
