package history

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates) the history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, ErrDatabaseOpenFailed.WithContext("path", dbPath).WithContext("cause", err.Error())
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		token TEXT PRIMARY KEY,
		run_trigger TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		files INTEGER NOT NULL DEFAULT 0,
		built INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const runColumns = "token, run_trigger, status, files, built, warnings, failures, skipped, started_at, finished_at, duration_ms"

// Record inserts or replaces a run.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET
			run_trigger = excluded.run_trigger,
			status = excluded.status,
			files = excluded.files,
			built = excluded.built,
			warnings = excluded.warnings,
			failures = excluded.failures,
			skipped = excluded.skipped,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			duration_ms = excluded.duration_ms`,
		run.Token, run.Trigger, run.Status,
		run.Files, run.Built, run.Warnings, run.Failures, run.Skipped,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get retrieves the run recorded under token.
func (s *SQLiteStore) Get(ctx context.Context, token string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE token = ?", token)
	run, err := scanRun(row)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound.WithContext("token", token)
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	return run, nil
}

// List retrieves recent runs, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, token LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var started, finished, durationMS int64
	err := sc.Scan(&r.Token, &r.Trigger, &r.Status,
		&r.Files, &r.Built, &r.Warnings, &r.Failures, &r.Skipped,
		&started, &finished, &durationMS)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, nil
}

// RunFinished indexes a finished run.
func (s *SQLiteStore) RunFinished(ctx context.Context, res *build.BuildResult) error {
	return s.Record(ctx, FromResult(res))
}

// FromResult converts a build result into an index entry.
func FromResult(res *build.BuildResult) Run {
	run := Run{
		Token:      res.Token,
		Trigger:    res.Trigger,
		Status:     string(res.Status),
		Files:      res.Files,
		StartedAt:  res.StartTime,
		FinishedAt: res.EndTime,
		Duration:   res.Duration,
	}
	if res.Report != nil {
		c := res.Report.Counts()
		run.Built = c.Built
		run.Warnings = c.Warnings
		run.Failures = c.Failures
		run.Skipped = c.Skipped
	}
	return run
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var (
	_ Store          = (*SQLiteStore)(nil)
	_ build.Observer = (*SQLiteStore)(nil)
)
