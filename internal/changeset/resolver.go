// Package changeset turns a build request into the ordered list of files a
// run must compile.
package changeset

import (
	"context"
	"log/slog"

	"github.com/edwingeng/deque"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/manifest"
	"git.home.luguber.info/inful/cranebuilder/internal/util/sets"
)

// DefaultConfigPath is the file built after everything else.
const DefaultConfigPath = "config.json"

// ChangeSet is the resolved work list of a run.
type ChangeSet struct {
	// Input is the expanded request, before the closure.
	Input []string
	// Files is the closure. When Config is set it is the last element.
	Files []string
	// Config is the config path when it is part of Files.
	Config string
}

// Others returns Files without the config path.
func (cs *ChangeSet) Others() []string {
	if cs.Config == "" {
		return cs.Files
	}
	return cs.Files[:len(cs.Files)-1]
}

// Resolver expands requests against a source tree and a manifest.
type Resolver struct {
	src        fsys.FS
	configPath string
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithConfigPath overrides the path built last.
func WithConfigPath(p string) Option {
	return func(r *Resolver) {
		if p != "" {
			r.configPath = fsys.Clean(p)
		}
	}
}

// NewResolver returns a resolver reading the tree behind src.
func NewResolver(src fsys.FS, opts ...Option) *Resolver {
	r := &Resolver{src: src, configPath: DefaultConfigPath}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands requested, computes the reverse-dependency closure over m
// and moves the config path to the end.
func (r *Resolver) Resolve(ctx context.Context, requested []string, m *manifest.Manifest) (*ChangeSet, error) {
	input, err := r.Expand(ctx, requested)
	if err != nil {
		return nil, err
	}
	files := Closure(input, m)
	cs := &ChangeSet{Input: input}
	cs.Files, cs.Config = r.tieBreak(files)
	slog.Debug("Resolved change set",
		slog.Int("input", len(cs.Input)),
		logfields.Files(len(cs.Files)),
		slog.Bool("config", cs.Config != ""))
	return cs, nil
}

// Expand turns a request into root-relative file paths. An empty request
// lists every file; directories are replaced by their recursive contents.
func (r *Resolver) Expand(ctx context.Context, requested []string) ([]string, error) {
	out := sets.NewOrdered[string]()
	if len(requested) == 0 {
		files, err := r.src.Expand(fsys.AllFiles)
		if err != nil {
			return nil, enumerationError(err, ".")
		}
		for _, f := range files {
			out.Add(f)
		}
		return out.Items(), nil
	}

	for _, raw := range requested {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := fsys.Clean(raw)
		if !r.src.IsDir(p) {
			out.Add(p)
			continue
		}
		files, err := r.src.Expand(fsys.DirPattern(p))
		if err != nil {
			return nil, enumerationError(err, p)
		}
		for _, f := range files {
			out.Add(f)
		}
	}
	return out.Items(), nil
}

// Closure returns input followed by every manifest path that transitively
// includes one of its members. Each path appears once; cycles terminate.
func Closure(input []string, m *manifest.Manifest) []string {
	result := sets.NewOrdered(input...)
	if m == nil {
		return result.Items()
	}
	parents := m.ReverseIndex()

	frontier := deque.NewDeque()
	for _, p := range result.Items() {
		frontier.PushBack(p)
	}
	for frontier.Len() != 0 {
		p := frontier.Front().(string)
		frontier.PopFront()
		for _, q := range parents[p] {
			if result.Add(q) {
				frontier.PushBack(q)
			}
		}
	}
	return result.Items()
}

func (r *Resolver) tieBreak(files []string) ([]string, string) {
	ordered := sets.NewOrdered(files...)
	if !ordered.Remove(r.configPath) {
		return files, ""
	}
	ordered.Add(r.configPath)
	return ordered.Items(), r.configPath
}

func enumerationError(err error, p string) error {
	return ferrors.FileSystemError("failed to enumerate source files").
		WithCause(err).
		WithContext("path", p).
		Build()
}
