package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/manifest"
)

// Status is the classification of a finished run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Classify returns StatusFailed when any file failed. Warnings never change
// the status.
func Classify(r *Report) Status {
	if r.Failed() {
		return StatusFailed
	}
	return StatusSuccess
}

// Aggregator persists the manifest and the report after every build settled.
type Aggregator struct {
	store manifest.Store
	dir   string
}

// NewAggregator writes reports below dir.
func NewAggregator(store manifest.Store, dir string) *Aggregator {
	return &Aggregator{store: store, dir: dir}
}

// Dir returns the reports directory.
func (a *Aggregator) Dir() string { return a.dir }

// Finalize saves m, writes the report and classifies the run. Persistence
// failures are fatal and returned as classified errors.
func (a *Aggregator) Finalize(ctx context.Context, m *manifest.Manifest, r *Report) (Status, error) {
	if err := a.store.Save(ctx, m); err != nil {
		return StatusFailed, err
	}
	r.mu.Lock()
	r.FinishedAt = time.Now()
	r.mu.Unlock()
	if err := a.Write(r); err != nil {
		return StatusFailed, err
	}
	return Classify(r), nil
}

// Write stores r at <dir>/<token>, replacing any previous report atomically.
func (a *Aggregator) Write(r *Report) error {
	if err := ValidateToken(r.Token); err != nil {
		return ferrors.ValidationError("invalid report token").WithCause(err).Build()
	}
	data, err := r.MarshalIndent()
	if err != nil {
		return a.writeError(r.Token, err)
	}
	if err := os.MkdirAll(a.dir, 0o750); err != nil {
		return a.writeError(r.Token, err)
	}
	target := filepath.Join(a.dir, r.Token)
	tmp := target + ".tmp"
	// #nosec G306 -- reports are regular project files
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return a.writeError(r.Token, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return a.writeError(r.Token, err)
	}
	return nil
}

func (a *Aggregator) writeError(token string, err error) error {
	return ferrors.ReportError(fmt.Sprintf("failed to write report %s", token)).
		WithCause(err).
		WithContext("dir", a.dir).
		Build()
}

// Read loads the report stored under token.
func Read(dir, token string) (*Report, error) {
	if err := ValidateToken(token); err != nil {
		return nil, ferrors.ValidationError("invalid report token").WithCause(err).Build()
	}
	data, err := os.ReadFile(filepath.Join(dir, token))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.NewError(ferrors.CategoryNotFound, fmt.Sprintf("no report for token %s", token)).Build()
		}
		return nil, ferrors.ReportError("failed to read report").WithCause(err).Build()
	}
	r := New(token)
	if err := json.Unmarshal(data, r); err != nil {
		return nil, ferrors.ReportError(fmt.Sprintf("report %s is corrupt", token)).WithCause(err).Build()
	}
	return r, nil
}

// List returns the tokens stored in dir, newest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ferrors.ReportError("failed to list reports").WithCause(err).Build()
	}
	type item struct {
		token string
		mod   time.Time
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) == ".tmp" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{token: e.Name(), mod: info.ModTime()})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].mod.Equal(items[j].mod) {
			return items[i].token > items[j].token
		}
		return items[i].mod.After(items[j].mod)
	})
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.token
	}
	return out, nil
}
