package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "cranebuilder.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "cranebuilder.yaml" {
			t.Errorf("expected context file=cranebuilder.yaml, got %v", file)
		}
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", ConfigError("test error").Build())

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if !HasSeverity(err, SeverityFatal) {
			t.Error("expected error to have fatal severity")
		}
		if GetCategory(stderrors.New("plain")) != CategoryInternal {
			t.Error("expected unclassified errors to be internal")
		}
	})

	t.Run("Retry strategies", func(t *testing.T) {
		if ConfigError("x").Build().CanRetry() {
			t.Error("config errors need user action")
		}
		if !NetworkError("x").Build().CanRetry() {
			t.Error("network errors should be retryable")
		}
	})

	t.Run("WithContext copies", func(t *testing.T) {
		base := BuilderError("compile").Build()
		withPath := base.WithContext("path", "a.js")

		if _, ok := base.Context().Get("path"); ok {
			t.Error("WithContext mutated the original error")
		}
		if p, _ := withPath.Context().GetString("path"); p != "a.js" {
			t.Errorf("expected path context, got %q", p)
		}
	})

	t.Run("Sentinel matching", func(t *testing.T) {
		sentinel := BuildError("build finished with errors").Build()
		err := fmt.Errorf("run: %w", BuildError("build finished with errors").WithContext("fail", 2).Build())
		if !stderrors.Is(err, sentinel) {
			t.Error("expected errors.Is to match on category and message")
		}
	})

	t.Run("Unwrap exposes cause", func(t *testing.T) {
		cause := stderrors.New("permission denied")
		err := FileSystemError("list files").WithCause(cause).Build()
		if !stderrors.Is(err, cause) {
			t.Error("expected cause in chain")
		}
	})
}
