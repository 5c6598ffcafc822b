// Package builders ships the reference builders selectable from the
// configuration. Every builder reads its source from Env.Src and writes its
// outputs below Env.Dest; output paths are relative to the destination root.
package builders

import (
	"fmt"
	"path"
	"strings"

	"git.home.luguber.info/inful/cranebuilder/internal/config"
	"git.home.luguber.info/inful/cranebuilder/internal/fsys"
	"git.home.luguber.info/inful/cranebuilder/internal/registry"
)

// Env is what a builder needs besides the path it compiles.
type Env struct {
	Src     fsys.FS
	Dest    fsys.FS
	Options map[string]any
}

// Constructor turns an environment into a registry factory.
type Constructor func(env Env) registry.Factory

var constructors = map[config.BuilderKind]Constructor{
	config.BuilderCopy:     Copy,
	config.BuilderMarkdown: Markdown,
	config.BuilderHTML:     HTML,
	config.BuilderBundle:   Bundle,
	config.BuilderJSON:     JSON,
}

// Lookup returns the constructor for kind.
func Lookup(kind config.BuilderKind) (Constructor, bool) {
	c, ok := constructors[kind]
	return c, ok
}

// NewRegistry registers every configured builder in order.
func NewRegistry(cfgs []config.BuilderConfig, src, dest fsys.FS) (*registry.Registry, error) {
	reg := registry.New()
	for i, bc := range cfgs {
		ctor, ok := Lookup(bc.Kind)
		if !ok {
			return nil, fmt.Errorf("builders[%d]: unknown kind %q", i, bc.Kind)
		}
		env := Env{Src: src, Dest: dest, Options: bc.Options}
		if err := reg.Register(bc.Pattern, string(bc.Kind), ctor(env)); err != nil {
			return nil, fmt.Errorf("builders[%d]: %w", i, err)
		}
	}
	return reg, nil
}

func boolOption(opts map[string]any, key string, def bool) bool {
	if v, ok := opts[key].(bool); ok {
		return v
	}
	return def
}

func stringOption(opts map[string]any, key, def string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return def
}

// withExt replaces the extension of p.
func withExt(p, ext string) string {
	return strings.TrimSuffix(p, path.Ext(p)) + ext
}

// resolveRef maps a reference found inside from onto a source-root path.
// Absolute references start at the root. ok is false for references that
// leave the tree.
func resolveRef(from, ref string) (string, bool) {
	var joined string
	if strings.HasPrefix(ref, "/") {
		joined = path.Clean(strings.TrimPrefix(ref, "/"))
	} else {
		joined = path.Join(path.Dir(from), ref)
	}
	if joined == ".." || strings.HasPrefix(joined, "../") || joined == "." {
		return "", false
	}
	return fsys.Clean(joined), true
}
