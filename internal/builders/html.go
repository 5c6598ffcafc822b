package builders

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"git.home.luguber.info/inful/cranebuilder/internal/registry"
	"git.home.luguber.info/inful/cranebuilder/internal/util/sets"
)

// HTML copies a page and records the local assets it references (script and
// img src, stylesheet href) as children, so changing an asset rebuilds the
// pages using it.
func HTML(env Env) registry.Factory {
	return func(path string) (registry.Builder, error) {
		return registry.BuilderFunc(func(ctx context.Context) (*registry.Result, error) {
			content, err := env.Src.ReadText(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			doc, err := html.Parse(strings.NewReader(content))
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			children := sets.NewOrdered[string]()
			var missing []string
			var walk func(*html.Node)
			walk = func(n *html.Node) {
				if n.Type == html.ElementNode {
					if ref := assetRef(n); ref != "" {
						if target, ok := localRef(path, ref); ok {
							children.Add(target)
							if !env.Src.IsFile(target) {
								missing = append(missing, target)
							}
						}
					}
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
			}
			walk(doc)

			if err := writeIfChanged(env, path, content); err != nil {
				return nil, err
			}
			res := registry.Composite(children.Items(), path)
			if len(missing) > 0 {
				res.WithInfo(registry.InfoWarning, "missing assets: "+strings.Join(missing, ", "))
			}
			return res, nil
		}), nil
	}
}

func assetRef(n *html.Node) string {
	switch n.Data {
	case "script", "img", "source":
		return getAttr(n, "src")
	case "link":
		if strings.EqualFold(getAttr(n, "rel"), "stylesheet") {
			return getAttr(n, "href")
		}
	}
	return ""
}

// localRef resolves ref relative to page when it points inside the tree.
func localRef(page, ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		return "", false
	}
	return resolveRef(page, p)
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
