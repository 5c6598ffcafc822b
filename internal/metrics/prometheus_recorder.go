package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "cranebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once          sync.Once
	fileDuration  *prom.HistogramVec
	fileResults   *prom.CounterVec
	runDuration   prom.Histogram
	runOutcome    *prom.CounterVec
	changeSetSize *prom.GaugeVec
	inFlight      prom.Gauge
	notifyRetries prom.Counter
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.fileDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "file_build_duration_seconds",
			Help:      "Duration of individual file builds",
			Buckets:   prom.DefBuckets,
		}, []string{"builder"})
		pr.fileResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "file_results_total",
			Help:      "Per-file build results by outcome",
		}, []string{"builder", "result"})
		pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   prom.DefBuckets,
		})
		pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"})
		pr.changeSetSize = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "change_set_files",
			Help:      "Size of the last resolved change set",
		}, []string{"stage"})
		pr.inFlight = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "builds_in_flight",
			Help:      "File builds currently running",
		})
		pr.notifyRetries = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notify_retries_total",
			Help:      "Report notification retries (transient failures)",
		})
		reg.MustRegister(pr.fileDuration, pr.fileResults, pr.runDuration, pr.runOutcome, pr.changeSetSize, pr.inFlight, pr.notifyRetries)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveFileBuildDuration(builder string, d time.Duration) {
	if p == nil || p.fileDuration == nil {
		return
	}
	p.fileDuration.WithLabelValues(builder).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(builder string, result ResultLabel) {
	if p == nil || p.fileResults == nil {
		return
	}
	p.fileResults.WithLabelValues(builder, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	if p == nil || p.runOutcome == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetChangeSetSize(input, closure int) {
	if p == nil || p.changeSetSize == nil {
		return
	}
	p.changeSetSize.WithLabelValues("input").Set(float64(input))
	p.changeSetSize.WithLabelValues("closure").Set(float64(closure))
}

func (p *PrometheusRecorder) SetInFlight(n int) {
	if p == nil || p.inFlight == nil {
		return
	}
	p.inFlight.Set(float64(n))
}

func (p *PrometheusRecorder) IncNotifyRetry() {
	if p == nil || p.notifyRetries == nil {
		return
	}
	p.notifyRetries.Inc()
}
