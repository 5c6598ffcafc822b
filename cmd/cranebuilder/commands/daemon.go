package commands

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/cranebuilder/internal/build/queue"
	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/scheduler"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct{}

func (d *DaemonCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	env, err := loadEnvironment(g, root)
	if err != nil {
		return err
	}
	defer env.close()

	if env.cfg.Schedule.Cron == "" && env.cfg.Schedule.Interval <= 0 {
		return ferrors.ConfigError("daemon requires schedule.interval or schedule.cron").UserAction().Build()
	}

	env.serveMetrics(ctx)
	bq := env.newQueue(ctx)

	sched, err := scheduler.New(bq)
	if err != nil {
		return err
	}
	if _, err := sched.Configure(env.cfg.Schedule); err != nil {
		return ferrors.ConfigError("invalid schedule").WithCause(err).Build()
	}
	sched.Start(ctx)

	if _, err := bq.Submit(queue.BuildTypeScheduled, nil); err != nil {
		slog.Error("Failed to enqueue initial build", logfields.Error(err))
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		slog.Warn("Failed to stop scheduler", logfields.Error(err))
	}
	bq.Stop(stopCtx)

	slog.Info("Daemon stopped successfully")
	return nil
}
