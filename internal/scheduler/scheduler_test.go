package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context) error { return nil }

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", zerolog.Nop())
	assert.Error(t, err)
}

func TestAddJob(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.AddTickJob(time.Minute, time.Minute, noop))
	assert.Error(t, s.AddJob("bad", "not a schedule", 0, noop))
	assert.Error(t, s.AddTickJob(100*time.Millisecond, 0, noop))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "tick", jobs[0].Name)

	s.RemoveJob("tick")
	assert.Empty(t, s.ListJobs())
}

func TestRunNow_AppliesDeadline(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)

	var deadline time.Time
	var hasDeadline bool
	err = s.RunNow("tick", time.Minute, func(ctx context.Context) error {
		deadline, hasDeadline = ctx.Deadline()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, hasDeadline)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	boom := errors.New("boom")
	assert.ErrorIs(t, s.RunNow("tick", 0, func(ctx context.Context) error { return boom }), boom)
}

func TestStartStop(t *testing.T) {
	s, err := New("UTC", zerolog.Nop())
	require.NoError(t, err)

	ran := make(chan struct{}, 10)
	require.NoError(t, s.AddTickJob(time.Second, time.Second, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}))

	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("tick job did not run")
	}
	<-s.Stop().Done()
}
