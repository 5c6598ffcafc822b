package config

import (
	"git.home.luguber.info/inful/cranebuilder/internal/foundation/normalization"
)

// BuilderKind names one of the shipped builders.
type BuilderKind string

const (
	BuilderCopy     BuilderKind = "copy"
	BuilderMarkdown BuilderKind = "markdown"
	BuilderHTML     BuilderKind = "html"
	BuilderBundle   BuilderKind = "bundle"
	BuilderJSON     BuilderKind = "json"
)

var builderKindNormalizer = normalization.NewNormalizer(map[string]BuilderKind{
	"copy":     BuilderCopy,
	"static":   BuilderCopy,
	"markdown": BuilderMarkdown,
	"md":       BuilderMarkdown,
	"html":     BuilderHTML,
	"bundle":   BuilderBundle,
	"json":     BuilderJSON,
}, "")

// NormalizeBuilderKind returns the canonical kind, or an error listing the
// accepted spellings.
func NormalizeBuilderKind(raw string) (BuilderKind, error) {
	return builderKindNormalizer.NormalizeWithError(raw)
}

// BuilderKinds lists the accepted kind spellings.
func BuilderKinds() []string { return builderKindNormalizer.ValidKeys() }
