package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
	"git.home.luguber.info/inful/cranebuilder/internal/build/queue"
	"git.home.luguber.info/inful/cranebuilder/internal/config"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/history"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/metrics"
	"git.home.luguber.info/inful/cranebuilder/internal/notify"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

// environment bundles everything a command needs to run builds.
type environment struct {
	cfg      *config.Config
	service  *build.DefaultBuildService
	registry *prom.Registry
	closers  []func()
}

// loadEnvironment loads the configuration and wires the build service with
// metrics, history and notification observers.
func loadEnvironment(g *Global, root *CLI) (*environment, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	applyLogging(g, root, cfg)

	svc, err := build.NewBuildService(cfg)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg, service: svc, registry: prom.NewRegistry()}
	recorder := metrics.NewPrometheusRecorder(env.registry)
	svc.WithRecorder(recorder).WithObserver(build.ObserverFunc(printSummary))

	if cfg.History.Path != "" {
		store, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			env.close()
			return nil, err
		}
		svc.WithObserver(store)
		env.closers = append(env.closers, func() { _ = store.Close() })
	}

	if cfg.Notify.URL != "" {
		n, err := notify.Connect(cfg.Notify)
		if err != nil {
			// The run itself does not depend on the broker.
			slog.Warn("Notifications disabled", logfields.Error(err))
		} else {
			svc.WithObserver(n.WithRecorder(recorder))
			env.closers = append(env.closers, n.Close)
		}
	}
	return env, nil
}

func (e *environment) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// exportMetrics writes the textfile snapshot when configured.
func (e *environment) exportMetrics() {
	if err := metrics.WriteTextfile(e.cfg.Metrics.Textfile, e.registry); err != nil {
		slog.Warn("Failed to write metrics textfile", logfields.Path(e.cfg.Metrics.Textfile), logfields.Error(err))
	}
}

// serveMetrics exposes /metrics until ctx is done. No-op without a listen
// address.
func (e *environment) serveMetrics(ctx context.Context) {
	addr := e.cfg.Metrics.Listen
	if addr == "" {
		return
	}
	e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(e.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		slog.Info("Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// newQueue starts the serialized run queue used by watch and daemon.
func (e *environment) newQueue(ctx context.Context) *queue.BuildQueue {
	bq := queue.NewBuildQueue(16, e.service)
	bq.OnComplete(func(*queue.BuildJob) { e.exportMetrics() })
	bq.Start(ctx)
	return bq
}

// generatedIgnores keeps the watcher from reacting to files the run itself
// writes when they live below the source root.
func generatedIgnores(cfg *config.Config) []string {
	src, err := filepath.Abs(cfg.Paths.Src)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range []string{cfg.Paths.Dest, cfg.Paths.Reports} {
		if rel, ok := below(src, p); ok {
			out = append(out, fsys.DirPattern(rel))
		}
	}
	for _, p := range []string{cfg.Paths.Manifest, cfg.History.Path} {
		if p == "" {
			continue
		}
		if rel, ok := below(src, p); ok {
			out = append(out, fsys.EscapeMeta(rel), fsys.EscapeMeta(rel)+".*.tmp", fsys.EscapeMeta(rel)+"-*")
		}
	}
	return out
}

func below(root, p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return fsys.Clean(rel), true
}

func printSummary(_ context.Context, res *build.BuildResult) error {
	if res.Report != nil {
		report.Summary(os.Stdout, res.Report)
	}
	return nil
}
