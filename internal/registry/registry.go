// Package registry maps source paths to the builders that compile them.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Kind tags a successful build result.
type Kind int

const (
	// KindLeaf is a plain file with no tracked inclusions.
	KindLeaf Kind = iota
	// KindComposite is a file that includes other files (its children).
	KindComposite
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindComposite:
		return "composite"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Info types recognized by the report.
const (
	InfoWarning = "warning"
	InfoError   = "error"
	InfoFail    = "fail"
)

// Info is an optional diagnostic attached to a successful build.
type Info struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of a successful build.
type Result struct {
	// Outputs are written paths relative to the destination root.
	Outputs []string
	Info    *Info
	Kind    Kind
	// Children is only meaningful for KindComposite.
	Children []string
}

// Leaf returns a leaf result for outputs.
func Leaf(outputs ...string) *Result {
	return &Result{Outputs: outputs, Kind: KindLeaf}
}

// Composite returns a composite result for outputs with the given children.
func Composite(children []string, outputs ...string) *Result {
	return &Result{Outputs: outputs, Kind: KindComposite, Children: children}
}

// WithInfo attaches a diagnostic to the result.
func (r *Result) WithInfo(typ, text string) *Result {
	r.Info = &Info{Type: typ, Text: text}
	return r
}

// Builder compiles one source file. Build must return once ctx is done; the
// dispatcher waits for it before the run's manifest is saved.
type Builder interface {
	Build(ctx context.Context) (*Result, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context) (*Result, error)

func (f BuilderFunc) Build(ctx context.Context) (*Result, error) { return f(ctx) }

// Factory constructs the builder for path.
type Factory func(path string) (Builder, error)

type entry struct {
	pattern string
	name    string
	factory Factory
}

// Registry is an ordered list of (pattern, factory) pairs. The first pattern
// matching a path wins.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// New returns an empty registry.
func New() *Registry { return &Registry{} }

// Register appends a pattern. name identifies the builder in logs and metrics.
func (r *Registry) Register(pattern, name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register %q: nil factory", pattern)
	}
	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("register %q: %w", pattern, doublestar.ErrBadPattern)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{pattern: pattern, name: name, factory: factory})
	return nil
}

// Match is a resolved registry entry.
type Match struct {
	Pattern string
	Name    string
	Factory Factory
}

// Resolve returns the first entry whose pattern matches path.
func (r *Registry) Resolve(path string) (Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if doublestar.MatchUnvalidated(e.pattern, path) {
			return Match{Pattern: e.pattern, Name: e.name, Factory: e.factory}, true
		}
	}
	return Match{}, false
}

// Patterns returns the registered patterns in order.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.pattern
	}
	return out
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
