package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/git"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Paths   []string `arg:"" optional:"" help:"Files or directories relative to the source root (default: everything)"`
	Token   string   `help:"Name of the report to write (default: a generated id)"`
	Changed bool     `help:"Add files with uncommitted git changes below the source root"`
}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	env, err := loadEnvironment(g, root)
	if err != nil {
		return err
	}
	defer env.close()

	paths := sourceRelative(env.service.Source(), b.Paths)
	if b.Changed {
		changed, err := git.ChangedFiles(env.cfg.Paths.Src)
		if err != nil {
			return err
		}
		if len(changed) == 0 && len(paths) == 0 {
			slog.Info("No changed files, nothing to build")
			return nil
		}
		paths = append(paths, changed...)
	}

	_, err = env.service.Run(ctx, build.BuildRequest{
		Paths:   paths,
		Token:   b.Token,
		Trigger: "manual",
	})
	env.exportMetrics()
	return err
}

// sourceRelative accepts paths spelled from the working directory (such as
// shell completions of src/a.txt) as well as source-root relative ones.
func sourceRelative(src fsys.FS, paths []string) []string {
	o, ok := src.(*fsys.OS)
	if !ok || len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = o.Rel(p)
	}
	return out
}
