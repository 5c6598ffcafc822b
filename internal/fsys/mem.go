package fsys

import (
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Mem is an in-memory FS. Directories exist implicitly when a file lives
// below them.
type Mem struct {
	mu    sync.RWMutex
	files map[string]memFile
	now   func() time.Time
}

type memFile struct {
	content string
	mtime   time.Time
}

// NewMem returns an FS holding files (path -> content).
func NewMem(files map[string]string) *Mem {
	m := &Mem{files: make(map[string]memFile), now: time.Now}
	for p, c := range files {
		m.files[Clean(p)] = memFile{content: c, mtime: m.now()}
	}
	return m
}

// SetMTime overrides the modification time of p.
func (m *Mem) SetMTime(p string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = Clean(p)
	if f, ok := m.files[p]; ok {
		f.mtime = t
		m.files[p] = f
	}
}

// Remove deletes p.
func (m *Mem) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, Clean(p))
}

func (m *Mem) IsFile(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[Clean(p)]
	return ok
}

func (m *Mem) IsDir(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p = Clean(p)
	if p == "." {
		return true
	}
	prefix := p + "/"
	for k := range m.files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

func (m *Mem) Exists(p string) bool { return m.IsFile(p) || m.IsDir(p) }

func (m *Mem) Expand(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for k := range m.files {
		if doublestar.MatchUnvalidated(pattern, k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Mem) StatMTime(p string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[Clean(p)]
	if !ok {
		return time.Time{}, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return f.mtime, nil
}

func (m *Mem) ReadText(p string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[Clean(p)]
	if !ok {
		return "", &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return f.content, nil
}

func (m *Mem) Open(p string) (io.ReadCloser, error) {
	content, err := m.ReadText(p)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *Mem) WriteText(p, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[Clean(p)] = memFile{content: content, mtime: m.now()}
	return nil
}
