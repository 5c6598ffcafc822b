// Package fsys is the filesystem capability used by the resolver, the
// dispatcher and the builders. All paths are slash separated and relative to
// the root of the FS they are handed to.
package fsys

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/unicode/norm"
)

// FS is the minimal filesystem surface needed to plan and run a build.
type FS interface {
	IsFile(p string) bool
	IsDir(p string) bool
	Exists(p string) bool
	// Expand returns the files matching pattern, sorted and de-duplicated.
	Expand(pattern string) ([]string, error)
	StatMTime(p string) (time.Time, error)
	ReadText(p string) (string, error)
	// Open streams the file content.
	Open(p string) (io.ReadCloser, error)
	WriteText(p, content string) error
}

// Clean normalizes p into the canonical manifest key form: slash separated,
// NFC, no leading "./" or "/".
func Clean(p string) string {
	p = filepath.ToSlash(p)
	p = norm.NFC.String(p)
	p = path.Clean("/" + p)
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return "."
	}
	return p
}

var metaReplacer = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `?`, `\?`,
	`[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`,
)

// EscapeMeta quotes glob metacharacters so p matches only itself.
func EscapeMeta(p string) string { return metaReplacer.Replace(p) }

// AllFiles is the pattern that expands to every file under a root.
const AllFiles = "**"

// DirPattern returns the pattern that expands to every file below dir.
func DirPattern(dir string) string {
	dir = Clean(dir)
	if dir == "." {
		return AllFiles
	}
	return EscapeMeta(dir) + "/**"
}

// OS is an FS backed by the operating system, rooted at a directory.
type OS struct {
	root string
	fsys fs.FS
}

// NewOS returns an FS rooted at root. The directory does not need to exist
// yet; it is created on the first write.
func NewOS(root string) (*OS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	return &OS{root: abs, fsys: os.DirFS(abs)}, nil
}

// Root returns the absolute directory the FS is rooted at.
func (o *OS) Root() string { return o.root }

// Abs maps a relative FS path to an absolute OS path.
func (o *OS) Abs(p string) string {
	return filepath.Join(o.root, filepath.FromSlash(Clean(p)))
}

// Rel maps a path given on the command line (absolute, or relative to the
// working directory) to a path relative to the root. Paths that do not live
// under the root are treated as already root-relative.
func (o *OS) Rel(p string) string {
	abs, err := filepath.Abs(p)
	if err == nil {
		if rel, relErr := filepath.Rel(o.root, abs); relErr == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			if _, statErr := os.Stat(abs); statErr == nil || filepath.IsAbs(p) {
				return Clean(rel)
			}
		}
	}
	return Clean(p)
}

func (o *OS) stat(p string) (fs.FileInfo, error) {
	return fs.Stat(o.fsys, Clean(p))
}

func (o *OS) IsFile(p string) bool {
	info, err := o.stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (o *OS) IsDir(p string) bool {
	info, err := o.stat(p)
	return err == nil && info.IsDir()
}

func (o *OS) Exists(p string) bool {
	_, err := o.stat(p)
	return err == nil
}

func (o *OS) Expand(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	if _, err := os.Stat(o.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	matches, err := doublestar.Glob(o.fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expand %q under %s: %w", pattern, o.root, err)
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, Clean(m))
	}
	sort.Strings(out)
	return out, nil
}

func (o *OS) StatMTime(p string) (time.Time, error) {
	info, err := o.stat(p)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (o *OS) ReadText(p string) (string, error) {
	data, err := fs.ReadFile(o.fsys, Clean(p))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (o *OS) Open(p string) (io.ReadCloser, error) {
	return o.fsys.Open(Clean(p))
}

func (o *OS) WriteText(p, content string) error {
	target := o.Abs(p)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", p, err)
	}
	// #nosec G306 -- build outputs are regular project files
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

var (
	_ FS = (*OS)(nil)
	_ FS = (*Mem)(nil)
)
