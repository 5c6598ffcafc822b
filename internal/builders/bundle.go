package builders

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/util/sets"
)

// Bundle reads a manifest file listing one source path per line ("#"
// starts a comment) and writes their concatenation next to it, without the
// .bundle extension: app.js.bundle produces app.js.
//
// Options: "separator" (string, default "\n") is written between parts.
func Bundle(env Env) registry.Factory {
	sep := stringOption(env.Options, "separator", "\n")

	return func(path string) (registry.Builder, error) {
		return registry.BuilderFunc(func(ctx context.Context) (*registry.Result, error) {
			listing, err := env.Src.ReadText(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}

			children := sets.NewOrdered[string]()
			scanner := bufio.NewScanner(strings.NewReader(listing))
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				target, ok := resolveRef(path, line)
				if !ok {
					return nil, fmt.Errorf("%s: entry %q leaves the source tree", path, line)
				}
				children.Add(target)
			}
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("scan %s: %w", path, err)
			}

			parts := make([]string, 0, children.Len())
			for _, child := range children.Items() {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				text, err := env.Src.ReadText(child)
				if err != nil {
					return nil, fmt.Errorf("%s: part %s: %w", path, child, err)
				}
				parts = append(parts, strings.TrimRight(text, "\n"))
			}

			out := strings.TrimSuffix(path, ".bundle")
			if err := writeIfChanged(env, out, strings.Join(parts, sep)+"\n"); err != nil {
				return nil, err
			}
			res := registry.Composite(children.Items(), out)
			if children.Len() == 0 {
				res.WithInfo(registry.InfoWarning, "bundle lists no files")
			}
			return res, nil
		}), nil
	}
}
