package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyToken      = "token"
	KeyBuilder    = "builder"
	KeyPattern    = "pattern"
	KeyFiles      = "files"
	KeyPhase      = "phase"
	KeyProgress   = "progress"
	KeyDurationMS = "duration_ms"
	KeyJobID      = "job_id"
	KeyJobType    = "job_type"
	KeyStatus     = "status"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Path(p string) slog.Attr       { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr     { return slog.String(KeyOutput, p) }
func Token(t string) slog.Attr      { return slog.String(KeyToken, t) }
func Builder(kind string) slog.Attr { return slog.String(KeyBuilder, kind) }
func Pattern(p string) slog.Attr    { return slog.String(KeyPattern, p) }
func Files(n int) slog.Attr         { return slog.Int(KeyFiles, n) }
func Phase(p string) slog.Attr      { return slog.String(KeyPhase, p) }
func JobID(id string) slog.Attr     { return slog.String(KeyJobID, id) }
func JobType(t string) slog.Attr    { return slog.String(KeyJobType, t) }
func Status(s string) slog.Attr     { return slog.String(KeyStatus, s) }

// Progress renders "done/total", the same counter the terminal progress bar used to show.
func Progress(done, total int) slog.Attr {
	return slog.Group(KeyProgress, slog.Int("done", done), slog.Int("total", total))
}

func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
