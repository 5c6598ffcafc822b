// Package dispatch runs the builders of a change set concurrently and files
// their outcomes into the manifest and the report.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/cranebuilder/internal/changeset"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/manifest"
	"git.home.luguber.info/inful/cranebuilder/internal/metrics"
	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

const (
	phaseFiles  = "files"
	phaseConfig = "config"

	unmatchedBuilder = "none"
)

// ErrTimeout is reported when a builder exceeds the per-file timeout.
var ErrTimeout = errors.New("build timed out")

// Dispatcher executes builds for a resolved change set.
type Dispatcher struct {
	registry    *registry.Registry
	dest        fsys.FS
	concurrency int
	timeout     time.Duration
	recorder    metrics.Recorder

	inFlight atomic.Int64
	settled  atomic.Int64
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency caps simultaneous builds. Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithTimeout bounds every single build. Zero disables the limit.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// New returns a dispatcher resolving builders through reg. Output mtimes are
// read from dest.
func New(reg *registry.Registry, dest fsys.FS, opts ...Option) *Dispatcher {
	d := &Dispatcher{registry: reg, dest: dest, recorder: metrics.NoopRecorder{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch builds every file of cs. All files except the config path run
// concurrently; the config path is built once they all settled. Per-file
// failures are recorded in rep and never stop other builds.
func (d *Dispatcher) Dispatch(ctx context.Context, cs *changeset.ChangeSet, m *manifest.Manifest, rep *report.Report) {
	d.settled.Store(0)
	total := len(cs.Files)

	d.runPhase(ctx, phaseFiles, cs.Others(), total, m, rep)
	if cs.Config != "" {
		d.runPhase(report.NewContext(ctx, rep), phaseConfig, []string{cs.Config}, total, m, rep)
	}
}

func (d *Dispatcher) runPhase(ctx context.Context, phase string, files []string, total int, m *manifest.Manifest, rep *report.Report) {
	if len(files) == 0 {
		return
	}
	var g errgroup.Group
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for _, f := range files {
		g.Go(func() error {
			d.buildOne(ctx, f, m, rep)
			done := d.settled.Add(1)
			slog.Debug("Build settled", logfields.Path(f), logfields.Phase(phase), logfields.Progress(int(done), total))
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) buildOne(ctx context.Context, path string, m *manifest.Manifest, rep *report.Report) {
	match, ok := d.registry.Resolve(path)
	if !ok {
		slog.Debug("No builder matches, skipping", logfields.Path(path))
		rep.RecordSkipped(path)
		d.recorder.IncFileResult(unmatchedBuilder, metrics.ResultSkipped)
		return
	}
	m.Ensure(path)

	if err := ctx.Err(); err != nil {
		d.fail(rep, match.Name, path, err.Error())
		return
	}

	d.recorder.SetInFlight(int(d.inFlight.Add(1)))
	start := time.Now()
	res, err := d.invoke(ctx, match.Factory, path)
	d.recorder.SetInFlight(int(d.inFlight.Add(-1)))
	d.recorder.ObserveFileBuildDuration(match.Name, time.Since(start))

	if err != nil {
		d.fail(rep, match.Name, path, err.Error())
		return
	}
	d.record(path, res, m, rep)

	result := metrics.ResultSuccess
	switch {
	case res.Info == nil:
	case res.Info.Type == registry.InfoError || res.Info.Type == registry.InfoFail:
		result = metrics.ResultFailed
	default:
		result = metrics.ResultWarning
	}
	d.recorder.IncFileResult(match.Name, result)
	slog.Debug("Built file", logfields.Path(path), logfields.Builder(match.Name),
		logfields.Duration(time.Since(start)), logfields.Files(len(res.Outputs)))
}

func (d *Dispatcher) fail(rep *report.Report, builder, path, msg string) {
	rep.RecordFail(path, msg)
	d.recorder.IncFileResult(builder, metrics.ResultFailed)
	slog.Debug("Build failed", logfields.Path(path), logfields.Builder(builder), slog.String("message", msg))
}

type outcome struct {
	res *registry.Result
	err error
}

// invoke constructs and runs the builder. Panics in either step become
// errors carrying the stack. When ctx ends first the outcome is an error, but
// invoke still waits for the builder to return so it keeps its slot and
// cannot write outputs after the run finalizes.
func (d *Dispatcher) invoke(ctx context.Context, factory registry.Factory, path string) (*registry.Result, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
			}
		}()
		b, err := factory(path)
		if err != nil {
			ch <- outcome{err: err}
			return
		}
		if b == nil {
			ch <- outcome{err: fmt.Errorf("no builder constructed for %s", path)}
			return
		}
		res, err := b.Build(ctx)
		if err == nil && res == nil {
			res = registry.Leaf()
		}
		ch <- outcome{res: res, err: err}
	}()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) && d.timeout > 0 {
			err = fmt.Errorf("%w after %s", ErrTimeout, d.timeout)
		}
		slog.Debug("Waiting for builder to stop", logfields.Path(path), logfields.Error(err))
		<-ch
		return nil, err
	}
}

func (d *Dispatcher) record(path string, res *registry.Result, m *manifest.Manifest, rep *report.Report) {
	if res.Kind == registry.KindComposite {
		m.SetChildren(path, res.Children)
	}
	for _, out := range res.Outputs {
		out = fsys.Clean(out)
		mtime, err := d.dest.StatMTime(out)
		if err != nil {
			continue
		}
		ms := mtime.UnixMilli()
		m.Touch(out, ms)
		rep.RecordBuild(out, ms)
	}
	if res.Info != nil {
		rep.RecordInfo(res.Info.Type, path, res.Info.Text)
	}
}
