package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cranebuilder/internal/build/queue"
	"git.home.luguber.info/inful/cranebuilder/internal/config"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []queue.BuildType
	err   error
}

func (f *fakeSubmitter) Submit(typ queue.BuildType, paths []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if paths != nil {
		return "", errors.New("scheduled builds must be full rebuilds")
	}
	f.calls = append(f.calls, typ)
	return "job", f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestIntervalSubmitsFullRebuilds(t *testing.T) {
	sub := &fakeSubmitter{}
	s, err := New(sub)
	require.NoError(t, err)

	id, err := s.Configure(config.ScheduleConfig{Interval: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start(t.Context())
	defer func() { require.NoError(t, s.Stop(t.Context())) }()

	require.Eventually(t, func() bool { return sub.count() >= 2 }, 5*time.Second, 10*time.Millisecond)
	sub.mu.Lock()
	assert.Equal(t, queue.BuildTypeScheduled, sub.calls[0])
	sub.mu.Unlock()
}

func TestCronSchedule(t *testing.T) {
	s, err := New(&fakeSubmitter{})
	require.NoError(t, err)

	id, err := s.Configure(config.ScheduleConfig{Cron: "0 3 * * *", Interval: time.Second})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	s.Start(t.Context())
	defer func() { require.NoError(t, s.Stop(t.Context())) }()

	var next time.Time
	require.Eventually(t, func() bool {
		var ok bool
		next, ok = s.NextRun()
		return ok
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, next.Hour())
	assert.Zero(t, next.Minute())
}

func TestEmptyScheduleRegistersNothing(t *testing.T) {
	s, err := New(&fakeSubmitter{})
	require.NoError(t, err)

	id, err := s.Configure(config.ScheduleConfig{})
	require.NoError(t, err)
	assert.Empty(t, id)
	_, ok := s.NextRun()
	assert.False(t, ok)
}

func TestInvalidCron(t *testing.T) {
	s, err := New(&fakeSubmitter{})
	require.NoError(t, err)
	_, err = s.Configure(config.ScheduleConfig{Cron: "not a cron"})
	require.Error(t, err)
}

func TestNewRequiresSubmitter(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
