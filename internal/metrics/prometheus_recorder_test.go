package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func gatheredValue(t *testing.T, reg *prom.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	nextMetric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue nextMetric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveFileBuildDuration("markdown", 150*time.Millisecond)
	pr.IncFileResult("markdown", ResultSuccess)
	pr.IncFileResult("markdown", ResultSuccess)
	pr.ObserveRunDuration(500 * time.Millisecond)
	pr.IncRunOutcome(RunFailed)
	pr.SetChangeSetSize(2, 5)
	pr.SetInFlight(3)
	pr.IncNotifyRetry()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}
	if got := gatheredValue(t, reg, "cranebuilder_file_results_total", map[string]string{"builder": "markdown", "result": "success"}); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := gatheredValue(t, reg, "cranebuilder_change_set_files", map[string]string{"stage": "closure"}); got != 5 {
		t.Fatalf("expected closure size 5, got %v", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncRunOutcome(RunSuccess)
	pr.SetInFlight(1)
	var r Recorder = NoopRecorder{}
	r.IncFileResult("copy", ResultSkipped)
}

func TestWriteTextfile(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome(RunSuccess)
	path := filepath.Join(t.TempDir(), "cranebuilder.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "cranebuilder_run_outcomes_total") {
		t.Fatalf("textfile missing run outcome counter:\n%s", data)
	}
	if err := WriteTextfile("", reg); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
