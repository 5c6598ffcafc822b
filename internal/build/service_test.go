package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/manifest"
	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
)

type fixture struct {
	src     *fsys.Mem
	dest    *fsys.Mem
	store   *manifest.JSONStore
	reports string
	built   sync.Map
	svc     *DefaultBuildService
}

// newFixture registers a builder for *.src files. Each line of a source file
// names another source it includes; the output is <name>.out.
func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		src:     fsys.NewMem(files),
		dest:    fsys.NewMem(nil),
		store:   manifest.NewJSONStore(filepath.Join(dir, "db.json")),
		reports: filepath.Join(dir, "reports"),
	}
	reg := registry.New()
	require.NoError(t, reg.Register("**/*.src", "src", func(path string) (registry.Builder, error) {
		return registry.BuilderFunc(func(context.Context) (*registry.Result, error) {
			f.built.Store(path, true)
			body, err := f.src.ReadText(path)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(body) == "fail" {
				return nil, errors.New("cannot build " + path)
			}
			var children []string
			for _, line := range strings.Split(body, "\n") {
				if line = strings.TrimSpace(line); strings.HasSuffix(line, ".src") {
					children = append(children, line)
				}
			}
			out := strings.TrimSuffix(path, ".src") + ".out"
			if err := f.dest.WriteText(out, body); err != nil {
				return nil, err
			}
			return registry.Composite(children, out), nil
		}), nil
	}))
	f.svc = NewBuildServiceFrom(f.src, f.dest, f.store, reg, f.reports)
	return f
}

func (f *fixture) builtPaths() []string {
	var out []string
	f.built.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	f.built = sync.Map{}
	return out
}

func TestRun_FullBuildWritesManifestAndReport(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.src":     "b.src",
		"b.src":     "",
		"notes.txt": "unmatched",
	})

	res, err := f.svc.Run(t.Context(), BuildRequest{})
	require.NoError(t, err)

	assert.Equal(t, BuildStatusSuccess, res.Status)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 3, res.Files)
	assert.ElementsMatch(t, []string{"a.src", "b.src"}, f.builtPaths())
	assert.Contains(t, res.Report.Skipped, "notes.txt")

	stored, err := report.Read(f.reports, res.Token)
	require.NoError(t, err)
	assert.Contains(t, stored.Build, "a.out")
	assert.Contains(t, stored.Build, "b.out")
	assert.Empty(t, stored.Fail)

	m, err := f.store.Load(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.src"}, m.Parents("b.src"))
	rec, ok := m.Get("a.out")
	require.True(t, ok)
	assert.NotNil(t, rec.Timestamp)
}

func TestRun_IncrementalRebuildsParents(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a.src": "b.src",
		"b.src": "",
		"c.src": "",
	})
	_, err := f.svc.Run(t.Context(), BuildRequest{})
	require.NoError(t, err)
	f.builtPaths()

	res, err := f.svc.Run(t.Context(), BuildRequest{Paths: []string{"b.src"}, Token: "second"})
	require.NoError(t, err)

	assert.Equal(t, "second", res.Token)
	assert.Equal(t, []string{"b.src", "a.src"}, res.Report.Files)
	assert.ElementsMatch(t, []string{"a.src", "b.src"}, f.builtPaths())
}

func TestRun_FailedFileReturnsBuildError(t *testing.T) {
	f := newFixture(t, map[string]string{
		"good.src": "",
		"bad.src":  "fail",
	})

	res, err := f.svc.Run(t.Context(), BuildRequest{Token: "broken"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrBuildFailed)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))

	assert.Equal(t, BuildStatusFailed, res.Status)
	assert.Contains(t, res.Report.Fail, "bad.src")
	assert.Contains(t, res.Report.Build, "good.out")

	stored, readErr := report.Read(f.reports, "broken")
	require.NoError(t, readErr)
	assert.Contains(t, stored.Fail, "bad.src")
}

func TestRun_InvalidTokenAborts(t *testing.T) {
	f := newFixture(t, map[string]string{"a.src": ""})

	res, err := f.svc.Run(t.Context(), BuildRequest{Token: "../escape"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Equal(t, BuildStatusAborted, res.Status)
	assert.Empty(t, f.builtPaths())
}

func TestRun_ManifestSaveFailureAborts(t *testing.T) {
	f := newFixture(t, map[string]string{"a.src": ""})
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	f.svc.store = manifest.NewJSONStore(filepath.Join(blocker, "db.json"))

	res, err := f.svc.Run(t.Context(), BuildRequest{Token: "nosave"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryManifest))
	assert.Equal(t, BuildStatusAborted, res.Status)

	_, readErr := report.Read(f.reports, "nosave")
	assert.Error(t, readErr)
}

func TestRun_ObserversSeeResult(t *testing.T) {
	f := newFixture(t, map[string]string{"a.src": ""})
	var seen []*BuildResult
	f.svc.
		WithObserver(ObserverFunc(func(_ context.Context, r *BuildResult) error {
			seen = append(seen, r)
			return nil
		})).
		WithObserver(ObserverFunc(func(context.Context, *BuildResult) error {
			return errors.New("observer down")
		}))

	res, err := f.svc.Run(t.Context(), BuildRequest{})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Same(t, res, seen[0])
	assert.True(t, seen[0].Status.IsTerminal())
}

func TestRun_CancelledMidRunStillPersists(t *testing.T) {
	dir := t.TempDir()
	src := fsys.NewMem(map[string]string{"a.src": ""})
	dest := fsys.NewMem(nil)
	store := manifest.NewJSONStore(filepath.Join(dir, "db.json"))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	reg := registry.New()
	require.NoError(t, reg.Register("*.src", "cancel", func(string) (registry.Builder, error) {
		return registry.BuilderFunc(func(context.Context) (*registry.Result, error) {
			if err := dest.WriteText("a.out", ""); err != nil {
				return nil, err
			}
			cancel()
			return registry.Leaf("a.out"), nil
		}), nil
	}))
	svc := NewBuildServiceFrom(src, dest, store, reg, filepath.Join(dir, "reports"))

	res, err := svc.Run(ctx, BuildRequest{Token: "cancelled"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
	assert.Equal(t, BuildStatusCancelled, res.Status)

	m, loadErr := store.Load(t.Context())
	require.NoError(t, loadErr)
	_, ok := m.Get("a.src")
	assert.True(t, ok)
	_, readErr := report.Read(filepath.Join(dir, "reports"), "cancelled")
	assert.NoError(t, readErr)
}

func TestBuildStatus(t *testing.T) {
	assert.True(t, BuildStatusSuccess.IsSuccess())
	assert.False(t, BuildStatusFailed.IsSuccess())
	for _, s := range []BuildStatus{BuildStatusSuccess, BuildStatusFailed, BuildStatusAborted, BuildStatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, BuildStatus("running").IsTerminal())
}
