// Package history keeps an index of finished runs so past reports can be
// listed and looked up by token.
package history

import (
	"context"
	"time"
)

// Run is one indexed run.
type Run struct {
	Token      string
	Trigger    string
	Status     string
	Files      int
	Built      int
	Warnings   int
	Failures   int
	Skipped    int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// Store persists run summaries.
type Store interface {
	// Record inserts or replaces the run with the same token.
	Record(ctx context.Context, run Run) error

	// Get returns the run indexed under token.
	Get(ctx context.Context, token string) (Run, error)

	// List returns up to limit runs, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]Run, error)

	// Close closes the store and releases resources.
	Close() error
}
