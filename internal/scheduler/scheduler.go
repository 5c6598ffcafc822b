// Package scheduler submits full rebuilds on an interval or cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/cranebuilder/internal/build/queue"
	"git.home.luguber.info/inful/cranebuilder/internal/config"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
)

// Submitter accepts run requests. *queue.BuildQueue satisfies it.
type Submitter interface {
	Submit(typ queue.BuildType, paths []string) (string, error)
}

// Scheduler wraps a gocron scheduler for periodic rebuilds.
type Scheduler struct {
	scheduler gocron.Scheduler
	submitter Submitter
}

// New creates a scheduler submitting to s.
func New(s Submitter) (*Scheduler, error) {
	if s == nil {
		return nil, errors.New("scheduler: submitter is required")
	}
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: gs, submitter: s}, nil
}

// Configure registers the rebuild job described by cfg. Cron wins over
// Interval; an empty schedule registers nothing and returns "".
func (s *Scheduler) Configure(cfg config.ScheduleConfig) (string, error) {
	var def gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		def = gocron.CronJob(cfg.Cron, false)
	case cfg.Interval > 0:
		def = gocron.DurationJob(cfg.Interval)
	default:
		return "", nil
	}

	job, err := s.scheduler.NewJob(
		def,
		gocron.NewTask(s.submit),
		gocron.WithName("scheduled-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create scheduled build job: %w", err)
	}
	slog.Info("Scheduled periodic rebuild",
		slog.String("cron", cfg.Cron),
		slog.Duration("interval", cfg.Interval))
	return job.ID().String(), nil
}

// NextRun returns when the first registered job runs next.
func (s *Scheduler) NextRun() (time.Time, bool) {
	jobs := s.scheduler.Jobs()
	if len(jobs) == 0 {
		return time.Time{}, false
	}
	next, err := jobs[0].NextRun()
	if err != nil || next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

func (s *Scheduler) submit() {
	id, err := s.submitter.Submit(queue.BuildTypeScheduled, nil)
	if err != nil {
		slog.Error("Failed to enqueue scheduled build", logfields.Error(err))
		return
	}
	slog.Info("Executing scheduled build", logfields.JobID(id))
}
