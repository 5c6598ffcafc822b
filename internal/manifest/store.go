package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
)

// Store loads and persists the manifest.
type Store interface {
	Load(ctx context.Context) (*Manifest, error)
	Save(ctx context.Context, m *Manifest) error
}

// JSONStore keeps the manifest as an indented JSON document on disk.
type JSONStore struct {
	path string
}

// NewJSONStore returns a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the manifest file location.
func (s *JSONStore) Path() string { return s.path }

// Load reads the manifest. A missing or unreadable document yields an empty
// manifest so a broken file never blocks a build.
func (s *JSONStore) Load(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Manifest unreadable, starting empty", logfields.Path(s.path), logfields.Error(err))
		}
		return New(), nil
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		slog.Warn("Manifest corrupt, starting empty", logfields.Path(s.path), logfields.Error(err))
		return New(), nil
	}
	if m.Files == nil {
		m.Files = make(map[string]*FileRecord)
	}
	return m, nil
}

// Save writes the manifest atomically: a temporary file in the same directory
// is renamed over the target.
func (s *JSONStore) Save(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	data, err := json.MarshalIndent(m, "", "    ")
	m.mu.RUnlock()
	if err != nil {
		return s.saveError(err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return s.saveError(err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return s.saveError(err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return s.saveError(err)
	}
	if err := tmp.Close(); err != nil {
		return s.saveError(err)
	}
	// #nosec G302 -- the manifest is a regular project file
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return s.saveError(err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return s.saveError(err)
	}
	return nil
}

func (s *JSONStore) saveError(err error) error {
	return ferrors.ManifestError(fmt.Sprintf("failed to save manifest %s", s.path)).
		WithCause(err).
		WithContext("path", s.path).
		Build()
}
