package builders

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/inful/mdfp"
	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/util/sets"
)

var includeDirective = regexp.MustCompile(`<!--\s*include:\s*(\S+)\s*-->`)

// Markdown renders a document to HTML. <!-- include: path --> directives are
// expanded recursively and every included file becomes a child, so editing
// a partial rebuilds the documents embedding it.
//
// Options: "fingerprint" (bool, default true) warns when a frontmatter
// fingerprint no longer matches the content.
func Markdown(env Env) registry.Factory {
	verify := boolOption(env.Options, "fingerprint", true)
	md := goldmark.New()

	return func(path string) (registry.Builder, error) {
		return registry.BuilderFunc(func(ctx context.Context) (*registry.Result, error) {
			raw, err := env.Src.ReadText(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}

			children := sets.NewOrdered[string]()
			seen := sets.New(path)
			expanded, err := expandIncludes(ctx, env, path, raw, children, seen)
			if err != nil {
				return nil, err
			}

			_, body := splitFrontmatter(expanded)
			var buf bytes.Buffer
			if err := md.Convert([]byte(body), &buf); err != nil {
				return nil, fmt.Errorf("render %s: %w", path, err)
			}

			out := withExt(path, ".html")
			if err := writeIfChanged(env, out, buf.String()); err != nil {
				return nil, err
			}

			res := registry.Composite(children.Items(), out)
			if verify && hasFingerprint(raw) {
				if ok, verr := mdfp.VerifyFingerprint(raw); verr != nil || !ok {
					res.WithInfo(registry.InfoWarning, "content fingerprint is stale")
				}
			}
			return res, nil
		}), nil
	}
}

func expandIncludes(ctx context.Context, env Env, from, content string, children *sets.Ordered[string], seen sets.Set[string]) (string, error) {
	var firstErr error
	expanded := includeDirective.ReplaceAllStringFunc(content, func(m string) string {
		if firstErr != nil {
			return m
		}
		if err := ctx.Err(); err != nil {
			firstErr = err
			return m
		}
		ref := includeDirective.FindStringSubmatch(m)[1]
		target, ok := resolveRef(from, ref)
		if !ok {
			firstErr = fmt.Errorf("%s: include %q leaves the source tree", from, ref)
			return m
		}
		children.Add(target)
		if seen.Has(target) {
			firstErr = fmt.Errorf("%s: include cycle through %s", from, target)
			return m
		}
		text, err := env.Src.ReadText(target)
		if err != nil {
			firstErr = fmt.Errorf("%s: include %s: %w", from, target, err)
			return m
		}
		seen.Add(target)
		defer seen.Delete(target)
		_, body := splitFrontmatter(text)
		nested, err := expandIncludes(ctx, env, target, body, children, seen)
		if err != nil {
			firstErr = err
			return m
		}
		return nested
	})
	return expanded, firstErr
}

// splitFrontmatter separates a leading YAML block delimited by "---" lines.
func splitFrontmatter(content string) (frontmatter, body string) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return "", content
	}
	rest := normalized[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content
	}
	after := rest[end+len("\n---"):]
	if after != "" && after[0] != '\n' {
		return "", content
	}
	return rest[:end], strings.TrimPrefix(after, "\n")
}

func hasFingerprint(content string) bool {
	fm, _ := splitFrontmatter(content)
	for _, line := range strings.Split(fm, "\n") {
		if strings.HasPrefix(line, mdfp.FingerprintField+":") {
			return true
		}
	}
	return false
}
