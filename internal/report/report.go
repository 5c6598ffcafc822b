// Package report models the outcome of a run and persists it.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// BuildEntry is the recorded output of a successful build.
type BuildEntry struct {
	Timestamp int64 `json:"timestamp"`
}

// Report is the per-run record written to reports/<token>.
type Report struct {
	mu sync.Mutex

	Token   string                `json:"token"`
	Input   []string              `json:"input"`
	Files   []string              `json:"files"`
	Build   map[string]BuildEntry `json:"build"`
	Warning map[string]string     `json:"warning"`
	Fail    map[string]string     `json:"fail"`
	// Skipped lists closure members no builder pattern matched. It is kept
	// for the run summary and never written to the artifact.
	Skipped []string `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// New returns an empty report for token.
func New(token string) *Report {
	return &Report{
		Token:     token,
		Input:     []string{},
		Files:     []string{},
		Build:     make(map[string]BuildEntry),
		Warning:   make(map[string]string),
		Fail:      make(map[string]string),
		StartedAt: time.Now(),
	}
}

// SetFiles records the expanded request and the resolved closure.
func (r *Report) SetFiles(input, files []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Input = slices.Clone(input)
	r.Files = slices.Clone(files)
}

// RecordBuild files the mtime (ms) of an output path.
func (r *Report) RecordBuild(output string, ms int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Build[output] = BuildEntry{Timestamp: ms}
}

// RecordInfo files a builder diagnostic. Types "error" and "fail" land in
// Fail, every other type in Warning.
func (r *Report) RecordInfo(typ, path, text string) {
	if typ == "error" || typ == "fail" {
		r.RecordFail(path, text)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warning[path] = text
}

// RecordFail files a failure message for path.
func (r *Report) RecordFail(path, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fail[path] = msg
}

// RecordSkipped notes a path without a builder.
func (r *Report) RecordSkipped(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Skipped = append(r.Skipped, path)
}

// Counts is a point-in-time view of the report maps.
type Counts struct {
	Files    int `json:"files"`
	Built    int `json:"built"`
	Warnings int `json:"warnings"`
	Failures int `json:"failures"`
	Skipped  int `json:"skipped"`
}

// Counts returns the current sizes of the report maps.
func (r *Report) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Counts{
		Files:    len(r.Files),
		Built:    len(r.Build),
		Warnings: len(r.Warning),
		Failures: len(r.Fail),
		Skipped:  len(r.Skipped),
	}
}

// Failed reports whether any file failed.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Fail) > 0
}

// FailedPaths returns the failed paths, sorted.
func (r *Report) FailedPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.Fail))
}

// MarshalIndent renders the report as the persisted document.
func (r *Report) MarshalIndent() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slices.Sort(r.Skipped)
	return json.MarshalIndent(r, "", "    ")
}

// ValidateToken rejects tokens that cannot be used as a report file name.
func ValidateToken(token string) error {
	if token == "" || token == "." || token == ".." {
		return fmt.Errorf("invalid token %q", token)
	}
	if strings.ContainsAny(token, `/\`) || strings.ContainsRune(token, 0) {
		return fmt.Errorf("invalid token %q: must not contain path separators", token)
	}
	return nil
}

type ctxKey struct{}

// NewContext returns ctx carrying r. The config phase uses it so a builder
// can summarize the run it finishes.
func NewContext(ctx context.Context, r *Report) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the report stored by NewContext.
func FromContext(ctx context.Context) (*Report, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Report)
	return r, ok && r != nil
}
