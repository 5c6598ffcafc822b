package logfields

import (
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Path", KeyPath, "a/b.js", Path("a/b.js")},
		{"Output", KeyOutput, "a/b.min.js", Output("a/b.min.js")},
		{"Token", KeyToken, "1700000000", Token("1700000000")},
		{"Builder", KeyBuilder, "markdown", Builder("markdown")},
		{"Pattern", KeyPattern, "**/*.md", Pattern("**/*.md")},
		{"Phase", KeyPhase, "config", Phase("config")},
		{"JobID", KeyJobID, "watch-1", JobID("watch-1")},
		{"JobType", KeyJobType, "scheduled", JobType("scheduled")},
		{"Status", KeyStatus, "failed", Status("failed")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if v := Files(3); v.Key != KeyFiles || v.Value.Int64() != 3 {
		t.Fatalf("Files mismatch: %v", v)
	}
	if v := Duration(1500 * time.Microsecond); v.Key != KeyDurationMS || v.Value.Float64() != 1.5 {
		t.Fatalf("Duration mismatch: %v", v)
	}
	p := Progress(2, 5)
	if p.Key != KeyProgress || len(p.Value.Group()) != 2 {
		t.Fatalf("Progress mismatch: %v", p)
	}
}

// TestErrorHelper ensures Error() handles nil and non-nil errors predictably.
func TestErrorHelper(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("Error key mismatch: %s", attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("Expected empty error string, got %s", attr.Value.String())
	}
	attr = Error(errTest{})
	if attr.Value.String() != "err-test" {
		t.Fatalf("Expected 'err-test', got %s", attr.Value.String())
	}
}

type errTest struct{}

func (e errTest) Error() string { return "err-test" }
