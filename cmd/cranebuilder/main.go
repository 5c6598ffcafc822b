package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cranebuilder/cmd/cranebuilder/commands"
	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(cli,
		kong.Bind(global),
		kong.Name("cranebuilder"),
		kong.Description("Incremental build orchestrator: rebuilds changed files and everything that includes them."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	parser.BindTo(ctx, (*context.Context)(nil))

	err := parser.Run(cli)
	stop()
	ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
}
