// Package notify publishes a summary of every finished run to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
	"git.home.luguber.info/inful/cranebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/logfields"
	"git.home.luguber.info/inful/cranebuilder/internal/metrics"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
	"git.home.luguber.info/inful/cranebuilder/internal/retry"
)

const flushTimeout = 5 * time.Second

// Publisher sends a message on a subject. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// RunEvent is the message published after each run.
type RunEvent struct {
	Token      string        `json:"token"`
	Status     string        `json:"status"`
	Trigger    string        `json:"trigger,omitempty"`
	Counts     report.Counts `json:"counts"`
	Failed     []string      `json:"failed,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Notifier publishes RunEvents with retry.
type Notifier struct {
	pub      Publisher
	subject  string
	policy   retry.Policy
	recorder metrics.Recorder
	closer   func()
}

// New wraps an existing publisher.
func New(pub Publisher, subject string, policy retry.Policy) *Notifier {
	return &Notifier{pub: pub, subject: subject, policy: policy, recorder: metrics.NoopRecorder{}}
}

// Connect dials the NATS server named in cfg.
func Connect(cfg config.NotifyConfig) (*Notifier, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("cranebuilder"),
		nats.MaxReconnects(cfg.MaxRetries),
		nats.ReconnectWait(cfg.Backoff))
	if err != nil {
		return nil, ferrors.NetworkError("failed to connect to NATS").
			WithCause(err).
			WithContext("url", cfg.URL).
			Build()
	}
	n := New(&flushingConn{conn: conn}, cfg.Subject,
		retry.NewPolicy(retry.ModeExponential, cfg.Backoff, 10*cfg.Backoff, cfg.MaxRetries))
	n.closer = conn.Close
	slog.Info("NATS notifier initialized", slog.String("url", cfg.URL), slog.String("subject", cfg.Subject))
	return n, nil
}

// WithRecorder counts publish retries.
func (n *Notifier) WithRecorder(r metrics.Recorder) *Notifier {
	if r != nil {
		n.recorder = r
	}
	return n
}

// RunFinished publishes the run summary.
func (n *Notifier) RunFinished(ctx context.Context, res *build.BuildResult) error {
	data, err := json.Marshal(NewRunEvent(res))
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	err = n.policy.Do(ctx, func(int) error {
		if pubErr := n.pub.Publish(n.subject, data); pubErr != nil {
			return ferrors.NetworkError("failed to publish run event").
				WithCause(pubErr).
				WithContext("subject", n.subject).
				Build()
		}
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		n.recorder.IncNotifyRetry()
		slog.Warn("Publishing run event failed, retrying",
			logfields.Token(res.Token),
			slog.Int("retry", attempt),
			slog.Duration("delay", delay),
			logfields.Error(err))
	})
	if err != nil {
		return err
	}
	slog.Debug("Published run event", logfields.Token(res.Token), slog.String("subject", n.subject))
	return nil
}

// Close closes the NATS connection if Connect opened it.
func (n *Notifier) Close() {
	if n.closer != nil {
		n.closer()
	}
}

// NewRunEvent summarizes a build result.
func NewRunEvent(res *build.BuildResult) RunEvent {
	ev := RunEvent{
		Token:      res.Token,
		Status:     string(res.Status),
		Trigger:    res.Trigger,
		DurationMS: res.Duration.Milliseconds(),
		FinishedAt: res.EndTime,
	}
	if res.Report != nil {
		ev.Counts = res.Report.Counts()
		ev.Failed = res.Report.FailedPaths()
	}
	return ev
}

type flushingConn struct {
	conn *nats.Conn
}

func (c *flushingConn) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return err
	}
	return c.conn.FlushTimeout(flushTimeout)
}

var _ build.Observer = (*Notifier)(nil)
