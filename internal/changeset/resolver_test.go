package changeset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/manifest"
)

func newManifest(children map[string][]string) *manifest.Manifest {
	m := manifest.New()
	for p, c := range children {
		m.SetChildren(p, c)
	}
	return m
}

func TestClosureIncludesParents(t *testing.T) {
	m := newManifest(map[string][]string{"a.js": {"b.js"}})
	assert.Equal(t, []string{"b.js", "a.js"}, Closure([]string{"b.js"}, m))
}

func TestClosureDeepChain(t *testing.T) {
	m := newManifest(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
		"d": {"e"},
	})
	assert.Equal(t, []string{"e", "d", "c", "b", "a"}, Closure([]string{"e"}, m))
}

func TestClosureCycleTerminatesWithoutDuplicates(t *testing.T) {
	m := newManifest(map[string][]string{
		"a": {"b"},
		"b": {"a"},
		"c": {"c"},
	})
	assert.Equal(t, []string{"a", "b"}, Closure([]string{"a"}, m))
	assert.Equal(t, []string{"c"}, Closure([]string{"c"}, m))
}

func TestClosureDiamond(t *testing.T) {
	m := newManifest(map[string][]string{
		"left":  {"leaf"},
		"right": {"leaf"},
		"top":   {"left", "right"},
	})
	got := Closure([]string{"leaf"}, m)
	assert.Equal(t, []string{"leaf", "left", "right", "top"}, got)
}

func TestClosureNilManifest(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, Closure([]string{"x", "y", "x"}, nil))
}

func TestExpandEmptyRequestListsEverything(t *testing.T) {
	src := fsys.NewMem(map[string]string{"a.js": "", "lib/b.js": "", "config.json": "{}"})
	r := NewResolver(src)
	files, err := r.Expand(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "config.json", "lib/b.js"}, files)
}

func TestExpandDirectoryMatchesIndividualFiles(t *testing.T) {
	src := fsys.NewMem(map[string]string{"lib/b.js": "", "lib/x/c.js": "", "a.js": ""})
	r := NewResolver(src)
	ctx := context.Background()

	fromDir, err := r.Expand(ctx, []string{"lib"})
	require.NoError(t, err)
	individual, err := r.Expand(ctx, []string{"lib/b.js", "lib/x/c.js"})
	require.NoError(t, err)
	assert.ElementsMatch(t, individual, fromDir)

	mixed, err := r.Expand(ctx, []string{"./a.js", "lib/", "lib/b.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "lib/b.js", "lib/x/c.js"}, mixed)
}

func TestExpandDirectoryNamedWithGlobMeta(t *testing.T) {
	root := t.TempDir()
	for _, f := range []string{"b{x}/c.js", "b{x}/sub/d.js", "bx/e.js", "a.js"} {
		full := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
		require.NoError(t, os.WriteFile(full, []byte(f), 0o600))
	}
	src, err := fsys.NewOS(root)
	require.NoError(t, err)

	files, err := NewResolver(src).Expand(context.Background(), []string{"b{x}"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b{x}/c.js", "b{x}/sub/d.js"}, files)
}

type failingFS struct{ fsys.FS }

func (failingFS) Expand(string) ([]string, error) { return nil, errors.New("disk gone") }

func TestExpandEnumerationFailureIsFatal(t *testing.T) {
	r := NewResolver(failingFS{fsys.NewMem(nil)})
	_, err := r.Resolve(context.Background(), nil, manifest.New())
	require.Error(t, err)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryFileSystem, ce.Category())
	assert.True(t, ce.IsFatal())
}

func TestResolveConfigTieBreak(t *testing.T) {
	src := fsys.NewMem(map[string]string{"a.js": "", "b.js": "", "config.json": "{}"})
	m := newManifest(map[string][]string{"a.js": {"b.js"}})
	r := NewResolver(src)

	cs, err := r.Resolve(context.Background(), []string{"config.json", "b.js"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"config.json", "b.js"}, cs.Input)
	assert.Equal(t, []string{"b.js", "a.js", "config.json"}, cs.Files)
	assert.Equal(t, "config.json", cs.Config)
	assert.Equal(t, []string{"b.js", "a.js"}, cs.Others())
}

func TestResolveEndToEndScenario(t *testing.T) {
	src := fsys.NewMem(map[string]string{"a.js": "", "b.js": "", "config.json": "{}"})
	m := newManifest(map[string][]string{"a.js": {"b.js"}})

	cs, err := NewResolver(src).Resolve(context.Background(), []string{"b.js"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.js", "a.js"}, cs.Files)
	assert.Empty(t, cs.Config)
	assert.Equal(t, cs.Files, cs.Others())
}

func TestResolveCustomConfigPath(t *testing.T) {
	src := fsys.NewMem(map[string]string{"site.json": "{}", "a.md": ""})
	r := NewResolver(src, WithConfigPath("./site.json"))
	cs, err := r.Resolve(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "site.json"}, cs.Files)
	assert.Equal(t, "site.json", cs.Config)
}

func TestResolveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err := NewResolver(fsys.NewMem(nil)).Resolve(ctx, []string{"a"}, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
