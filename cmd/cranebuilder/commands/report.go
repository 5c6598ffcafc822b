package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/cranebuilder/internal/config"
	"git.home.luguber.info/inful/cranebuilder/internal/history"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

// ReportCmd implements the 'report' command.
type ReportCmd struct {
	Token string `arg:"" optional:"" help:"Report token (default: list recent runs)"`
	Limit int    `help:"Maximum number of runs to list" default:"20"`
	JSON  bool   `name:"json" help:"Print the stored report document"`
}

func (r *ReportCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	applyLogging(g, root, cfg)

	if r.Token != "" {
		return r.show(os.Stdout, cfg)
	}
	return r.list(ctx, os.Stdout, cfg)
}

func (r *ReportCmd) show(w io.Writer, cfg *config.Config) error {
	rep, err := report.Read(cfg.Paths.Reports, r.Token)
	if err != nil {
		return err
	}
	if r.JSON {
		data, err := rep.MarshalIndent()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	c := rep.Counts()
	status := color.GreenString(string(report.Classify(rep)))
	if rep.Failed() {
		status = color.RedString(string(report.Classify(rep)))
	}
	fmt.Fprintf(w, "Run %s: %s\n", rep.Token, status)
	fmt.Fprintf(w, "  files %d, built %d, warnings %d, errors %d\n",
		c.Files, c.Built, c.Warnings, c.Failures)
	if !rep.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  finished %s (%s)\n",
			rep.FinishedAt.Format(time.RFC3339), rep.FinishedAt.Sub(rep.StartedAt).Round(time.Millisecond))
	}
	report.Summary(w, rep)
	return nil
}

func (r *ReportCmd) list(ctx context.Context, w io.Writer, cfg *config.Config) error {
	if cfg.History.Path == "" {
		tokens, err := report.List(cfg.Paths.Reports)
		if err != nil {
			return err
		}
		if r.Limit > 0 && len(tokens) > r.Limit {
			tokens = tokens[:r.Limit]
		}
		for _, t := range tokens {
			fmt.Fprintln(w, t)
		}
		return nil
	}

	store, err := history.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.List(ctx, r.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tTRIGGER\tSTATUS\tFILES\tBUILT\tWARNINGS\tERRORS\tSTARTED\tDURATION")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.Token, run.Trigger, run.Status, run.Files, run.Built, run.Warnings, run.Failures,
			run.StartedAt.Format(time.RFC3339), run.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}
