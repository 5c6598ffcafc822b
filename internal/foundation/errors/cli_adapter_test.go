package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "failed files", err: BuildError("build finished with errors").Build(), expected: 11},
		{name: "manifest write", err: ManifestError("write manifest").Build(), expected: 13},
		{name: "wrapped classified", err: fmt.Errorf("run: %w", FileSystemError("list files").Build()), expected: 13},
		{name: "git", err: GitError("open repository").Build(), expected: 8},
		{name: "unclassified error", err: stderrors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	quiet := NewCLIErrorAdapter(false, slog.Default())
	verbose := NewCLIErrorAdapter(true, slog.Default())

	err := ManifestError("write manifest").WithCause(stderrors.New("disk full")).Build()

	if got := quiet.FormatError(err); got != "Error: write manifest: disk full" {
		t.Errorf("quiet FormatError() = %q", got)
	}
	if got := verbose.FormatError(err); got != "[manifest:fatal] write manifest: disk full" {
		t.Errorf("verbose FormatError() = %q", got)
	}
	if got := quiet.FormatError(stderrors.New("plain")); got != "Error: plain" {
		t.Errorf("unclassified FormatError() = %q", got)
	}
	if got := quiet.FormatError(nil); got != "" {
		t.Errorf("nil FormatError() = %q", got)
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var stderr, logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.stderr = &stderr
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(BuildError("build finished with 2 errors").Build())

	if code != 11 {
		t.Fatalf("exit code = %d, want 11", code)
	}
	if stderr.String() != "Error: build finished with 2 errors\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
	if logs.Len() != 0 {
		t.Errorf("non-fatal errors should not be logged in quiet mode, got %q", logs.String())
	}
}
