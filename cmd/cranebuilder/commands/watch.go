package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/cranebuilder/internal/build/queue"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Initial bool `help:"Run a full build before watching" default:"true" negatable:""`
}

func (w *WatchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	env, err := loadEnvironment(g, root)
	if err != nil {
		return err
	}
	defer env.close()

	env.serveMetrics(ctx)
	bq := env.newQueue(ctx)
	defer bq.Stop(context.WithoutCancel(ctx))

	if w.Initial {
		if _, err := bq.Submit(queue.BuildTypeManual, nil); err != nil {
			return err
		}
	}

	ignore := append(append([]string{}, env.cfg.Watch.Ignore...), generatedIgnores(env.cfg)...)
	watcher, err := watch.New(watch.Config{
		Dir:      env.cfg.Paths.Src,
		Ignore:   ignore,
		Debounce: env.cfg.Watch.Debounce,
		OnChange: func(_ context.Context, changed []string) {
			id, err := bq.Submit(queue.BuildTypeWatch, changed)
			if err != nil {
				slog.Warn("Dropped change batch", logfields.Files(len(changed)), logfields.Error(err))
				return
			}
			slog.Info("Change batch queued", logfields.JobID(id), logfields.Files(len(changed)))
		},
	})
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}
