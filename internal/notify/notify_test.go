package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cranebuilder/internal/build"
	ferrors "git.home.luguber.info/inful/cranebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/cranebuilder/internal/metrics"
	"git.home.luguber.info/inful/cranebuilder/internal/report"
	"git.home.luguber.info/inful/cranebuilder/internal/retry"
)

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	subjects []string
	messages [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, data)
	return nil
}

type retryCounter struct {
	metrics.NoopRecorder
	n int
}

func (r *retryCounter) IncNotifyRetry() { r.n++ }

func fastPolicy(retries int) retry.Policy {
	return retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, retries)
}

func sampleResult() *build.BuildResult {
	rep := report.New("tok")
	rep.SetFiles([]string{"a.md"}, []string{"a.md", "b.md"})
	rep.RecordBuild("a.html", 10)
	rep.RecordFail("b.md", "boom")
	end := time.UnixMilli(1_700_000_000_000).UTC()
	return &build.BuildResult{
		Status:   build.BuildStatusFailed,
		Token:    "tok",
		Trigger:  "watch",
		Report:   rep,
		Files:    2,
		Duration: 2 * time.Second,
		EndTime:  end,
	}
}

func TestRunFinishedPublishesSummary(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, "cranebuilder.reports", fastPolicy(0))

	require.NoError(t, n.RunFinished(t.Context(), sampleResult()))

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "cranebuilder.reports", pub.subjects[0])

	var ev RunEvent
	require.NoError(t, json.Unmarshal(pub.messages[0], &ev))
	assert.Equal(t, "tok", ev.Token)
	assert.Equal(t, "failed", ev.Status)
	assert.Equal(t, "watch", ev.Trigger)
	assert.Equal(t, 1, ev.Counts.Built)
	assert.Equal(t, 1, ev.Counts.Failures)
	assert.Equal(t, []string{"b.md"}, ev.Failed)
	assert.Equal(t, int64(2000), ev.DurationMS)
}

func TestRunFinishedRetriesPublishFailures(t *testing.T) {
	pub := &fakePublisher{failures: 2}
	rec := &retryCounter{}
	n := New(pub, "s", fastPolicy(3)).WithRecorder(rec)

	require.NoError(t, n.RunFinished(t.Context(), sampleResult()))
	assert.Len(t, pub.messages, 1)
	assert.Equal(t, 2, rec.n)
}

func TestRunFinishedGivesUp(t *testing.T) {
	pub := &fakePublisher{failures: 10}
	n := New(pub, "s", fastPolicy(1))

	err := n.RunFinished(t.Context(), sampleResult())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNetwork))
	assert.Empty(t, pub.messages)
}

func TestNewRunEventWithoutReport(t *testing.T) {
	ev := NewRunEvent(&build.BuildResult{Token: "x", Status: build.BuildStatusAborted})
	assert.Equal(t, "aborted", ev.Status)
	assert.Zero(t, ev.Counts)
	assert.Nil(t, ev.Failed)
}
