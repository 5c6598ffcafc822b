// Package manifest holds the cross-run dependency and timestamp graph.
package manifest

import (
	"slices"
	"sort"
	"sync"
)

// FileRecord is the per-path entry of the manifest.
type FileRecord struct {
	// Timestamp is the output mtime in milliseconds since the epoch.
	Timestamp *int64 `json:"timestamp,omitempty"`
	// Children lists the paths this composite file includes.
	Children []string `json:"children,omitempty"`
}

// Manifest maps paths to their records. It is loaded once per run, mutated by
// concurrent builds and saved once.
type Manifest struct {
	mu    sync.RWMutex
	Files map[string]*FileRecord `json:"files"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Files: make(map[string]*FileRecord)}
}

func (m *Manifest) ensureLocked(path string) *FileRecord {
	if m.Files == nil {
		m.Files = make(map[string]*FileRecord)
	}
	rec, ok := m.Files[path]
	if !ok || rec == nil {
		rec = &FileRecord{}
		m.Files[path] = rec
	}
	return rec
}

// Ensure creates an empty record for path if none exists. Existing records
// are left untouched.
func (m *Manifest) Ensure(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(path)
}

// SetChildren replaces the children of path.
func (m *Manifest) SetChildren(path string, children []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(path).Children = slices.Clone(children)
}

// Touch records ms as the timestamp of path.
func (m *Manifest) Touch(path string, ms int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureLocked(path).Timestamp = &ms
}

// Get returns a copy of the record for path.
func (m *Manifest) Get(path string) (FileRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.Files[path]
	if !ok || rec == nil {
		return FileRecord{}, false
	}
	out := FileRecord{Children: slices.Clone(rec.Children)}
	if rec.Timestamp != nil {
		ts := *rec.Timestamp
		out.Timestamp = &ts
	}
	return out, true
}

// Parents returns every path whose children include child, sorted.
func (m *Manifest) Parents(child string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var parents []string
	for p, rec := range m.Files {
		if rec != nil && slices.Contains(rec.Children, child) {
			parents = append(parents, p)
		}
	}
	sort.Strings(parents)
	return parents
}

// ReverseIndex builds child -> parents for every composite record. Parent
// lists are sorted so closures are deterministic.
func (m *Manifest) ReverseIndex() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx := make(map[string][]string)
	for p, rec := range m.Files {
		if rec == nil {
			continue
		}
		for _, c := range rec.Children {
			if !slices.Contains(idx[c], p) {
				idx[c] = append(idx[c], p)
			}
		}
	}
	for c := range idx {
		sort.Strings(idx[c])
	}
	return idx
}

// Len returns the number of records.
func (m *Manifest) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Files)
}
