package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/cranebuilder/internal/config"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"cranebuilder.yaml" env:"CRANEBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Rebuild the given files (or everything) and their dependents"`
	Watch  WatchCmd  `cmd:"" help:"Rebuild incrementally whenever source files change"`
	Daemon DaemonCmd `cmd:"" help:"Run scheduled full rebuilds"`
	Report ReportCmd `cmd:"" help:"Show a stored run report or list recent runs"`
	Init   InitCmd   `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := parseLogLevel(c.Verbose)
	installLogger(g, level, config.LogFormatText)
	return nil
}

// parseLogLevel honours --verbose first, then CRANEBUILDER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if env := os.Getenv("CRANEBUILDER_LOG_LEVEL"); env != "" {
		return config.NormalizeLogLevel(env).SlogLevel()
	}
	return slog.LevelInfo
}

func installLogger(g *Global, level slog.Level, format config.LogFormat) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
}

// applyLogging re-installs the logger with the configured level and format.
// Flags and environment keep precedence over the file.
func applyLogging(g *Global, root *CLI, cfg *config.Config) {
	level := cfg.Logging.Level.SlogLevel()
	if root.Verbose || os.Getenv("CRANEBUILDER_LOG_LEVEL") != "" {
		level = parseLogLevel(root.Verbose)
	}
	installLogger(g, level, cfg.Logging.Format)
}
