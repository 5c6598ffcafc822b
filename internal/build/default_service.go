package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/cranebuilder/internal/builders"
	"git.home.luguber.info/inful/cranebuilder/internal/changeset"
	"git.home.luguber.info/inful/cranebuilder/internal/config"
	"git.home.luguber.info/inful/cranebuilder/internal/dispatch"
	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/manifest"
	"git.home.luguber.info/inful/cranebuilder/internal/metrics"
	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

// DefaultBuildService is the standard implementation of BuildService.
// It orchestrates: manifest load → resolve → dispatch → finalize.
type DefaultBuildService struct {
	src        fsys.FS
	dest       fsys.FS
	store      manifest.Store
	registry   *registry.Registry
	reportsDir string
	configPath string

	concurrency int
	timeout     time.Duration

	recorder  metrics.Recorder
	observers []Observer
	newToken  func() string
}

// NewBuildService creates a service rooted at the configured paths.
func NewBuildService(cfg *config.Config) (*DefaultBuildService, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("config required").Build()
	}
	src, err := fsys.NewOS(cfg.Paths.Src)
	if err != nil {
		return nil, ferrors.FileSystemError("invalid source root").WithCause(err).Build()
	}
	dest, err := fsys.NewOS(cfg.Paths.Dest)
	if err != nil {
		return nil, ferrors.FileSystemError("invalid destination root").WithCause(err).Build()
	}
	reg, err := builders.NewRegistry(cfg.Builders, src, dest)
	if err != nil {
		return nil, ferrors.ConfigError("invalid builder configuration").WithCause(err).Build()
	}
	return &DefaultBuildService{
		src:         src,
		dest:        dest,
		store:       manifest.NewJSONStore(cfg.Paths.Manifest),
		registry:    reg,
		reportsDir:  cfg.Paths.Reports,
		configPath:  cfg.Paths.ConfigFile,
		concurrency: cfg.Build.Concurrency,
		timeout:     cfg.Build.Timeout,
		recorder:    metrics.NoopRecorder{},
		newToken:    uuid.NewString,
	}, nil
}

// NewBuildServiceFrom assembles a service from explicit parts (for tests and
// embedding).
func NewBuildServiceFrom(src, dest fsys.FS, store manifest.Store, reg *registry.Registry, reportsDir string) *DefaultBuildService {
	return &DefaultBuildService{
		src:        src,
		dest:       dest,
		store:      store,
		registry:   reg,
		reportsDir: reportsDir,
		configPath: changeset.DefaultConfigPath,
		recorder:   metrics.NoopRecorder{},
		newToken:   uuid.NewString,
	}
}

// WithRecorder injects a metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithObserver registers an observer notified after each finalized run.
func (s *DefaultBuildService) WithObserver(o Observer) *DefaultBuildService {
	if o != nil {
		s.observers = append(s.observers, o)
	}
	return s
}

// WithConcurrency caps simultaneous builds (0 = unbounded).
func (s *DefaultBuildService) WithConcurrency(n int) *DefaultBuildService {
	s.concurrency = n
	return s
}

// WithTimeout bounds every single build (0 = none).
func (s *DefaultBuildService) WithTimeout(d time.Duration) *DefaultBuildService {
	s.timeout = d
	return s
}

// WithConfigPath overrides the file built after all others.
func (s *DefaultBuildService) WithConfigPath(p string) *DefaultBuildService {
	s.configPath = p
	return s
}

// Source returns the source filesystem.
func (s *DefaultBuildService) Source() fsys.FS { return s.src }

// Run executes one incremental run.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	startTime := time.Now()
	result := &BuildResult{StartTime: startTime, Token: req.Token, Trigger: req.Trigger}
	if result.Token == "" {
		result.Token = s.newToken()
	}
	log := slog.With(logfields.Token(result.Token))

	abort := func(err error) (*BuildResult, error) {
		result.Status = BuildStatusAborted
		s.finish(result)
		s.recorder.IncRunOutcome(metrics.RunAborted)
		log.Error("Build aborted", logfields.Error(err))
		return result, err
	}

	if err := report.ValidateToken(result.Token); err != nil {
		return abort(ferrors.ValidationError("invalid run token").WithCause(err).Build())
	}

	m, err := s.store.Load(ctx)
	if err != nil {
		return abort(ferrors.ManifestError("failed to load manifest").WithCause(err).Build())
	}

	resolver := changeset.NewResolver(s.src, changeset.WithConfigPath(s.configPath))
	cs, err := resolver.Resolve(ctx, req.Paths, m)
	if err != nil {
		if ctx.Err() != nil {
			err = ferrors.WrapError(err, ferrors.CategoryRuntime, "build cancelled").Build()
		}
		return abort(err)
	}
	result.Files = len(cs.Files)
	s.recorder.SetChangeSetSize(len(cs.Input), len(cs.Files))
	log.Info("Building", slog.Int("input", len(cs.Input)), logfields.Files(len(cs.Files)),
		slog.String("trigger", req.Trigger))

	rep := report.New(result.Token)
	rep.StartedAt = startTime
	rep.SetFiles(cs.Input, cs.Files)
	result.Report = rep

	d := dispatch.New(s.registry, s.dest,
		dispatch.WithConcurrency(s.concurrency),
		dispatch.WithTimeout(s.timeout),
		dispatch.WithRecorder(s.recorder))
	d.Dispatch(ctx, cs, m, rep)

	// Completed builds are persisted even when the run was interrupted.
	agg := report.NewAggregator(s.store, s.reportsDir)
	status, err := agg.Finalize(context.WithoutCancel(ctx), m, rep)
	if err != nil {
		return abort(err)
	}

	s.finish(result)
	counts := rep.Counts()
	log.Info(fmt.Sprintf("Compiled %d files", len(cs.Files)),
		logfields.Duration(result.Duration),
		slog.Int("built", counts.Built),
		slog.Int("warnings", counts.Warnings),
		slog.Int("failures", counts.Failures))

	switch {
	case ctx.Err() != nil:
		result.Status = BuildStatusCancelled
		s.recorder.IncRunOutcome(metrics.RunCanceled)
	case status == report.StatusFailed:
		result.Status = BuildStatusFailed
		s.recorder.IncRunOutcome(metrics.RunFailed)
	default:
		result.Status = BuildStatusSuccess
		s.recorder.IncRunOutcome(metrics.RunSuccess)
	}
	s.recorder.ObserveRunDuration(result.Duration)
	s.notify(context.WithoutCancel(ctx), result)

	switch result.Status {
	case BuildStatusCancelled:
		return result, ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "build cancelled").Build()
	case BuildStatusFailed:
		return result, ferrors.WrapError(ErrBuildFailed, ferrors.CategoryBuild,
			fmt.Sprintf("build finished with %d errors", counts.Failures)).
			WithContext("token", result.Token).
			Build()
	}
	return result, nil
}

func (s *DefaultBuildService) finish(result *BuildResult) {
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
}

func (s *DefaultBuildService) notify(ctx context.Context, result *BuildResult) {
	for _, o := range s.observers {
		if err := o.RunFinished(ctx, result); err != nil {
			slog.Warn("Run observer failed", logfields.Token(result.Token), logfields.Error(err))
		}
	}
}

var _ BuildService = (*DefaultBuildService)(nil)
