package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, retention int) *Manager {
	t.Helper()
	m, err := NewManager(retention, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCanTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
		ok       bool
	}{
		{Queued, Running, true},
		{Queued, Cancelled, true},
		{Running, Complete, true},
		{Running, Failed, true},
		{Running, Cancelled, true},
		{Queued, Complete, false},
		{Complete, Running, false},
		{Failed, Running, false},
		{Cancelled, Running, false},
		{Running, Queued, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
	assert.True(t, Complete.Terminal())
	assert.False(t, Running.Terminal())
}

func TestSubmit_CompletesWithResultAndPhases(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 0)

	job := m.Submit(context.Background(), "repo", func(ctx context.Context, r Reporter) (any, error) {
		r.Phase(PhaseScanning)
		r.Phase(PhaseLinking)
		return 42, nil
	})
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "repo", job.Source)

	done, err := m.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, Complete, done.State)
	assert.Equal(t, PhaseLinking, done.Phase)
	assert.Equal(t, 42, done.Result)
	assert.Empty(t, done.Error)
	assert.False(t, done.StartedAt.IsZero())
	assert.False(t, done.FinishedAt.Before(done.StartedAt))
}

func TestSubmit_FailureRecordsError(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 0)

	job := m.Submit(context.Background(), "repo", func(context.Context, Reporter) (any, error) {
		return nil, errors.New("clone failed")
	})
	done, err := m.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, Failed, done.State)
	assert.Equal(t, "clone failed", done.Error)
}

func TestCancel_RunningJob(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 0)

	started := make(chan struct{})
	job := m.Submit(context.Background(), "repo", func(ctx context.Context, _ Reporter) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	require.NoError(t, m.Cancel(job.ID))

	done, err := m.Wait(waitCtx(t), job.ID)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, done.State)

	err = m.Cancel(job.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetAndCancel_UnknownJob(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 0)

	_, err := m.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Cancel("nope"), ErrNotFound)
	_, err = m.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetention_EvictsOldestFinished(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 2)

	var ids []string
	for range 3 {
		job := m.Submit(context.Background(), "repo", func(context.Context, Reporter) (any, error) {
			return nil, nil
		})
		_, err := m.Wait(waitCtx(t), job.ID)
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	_, err := m.Get(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	for _, id := range ids[1:] {
		_, err := m.Get(id)
		assert.NoError(t, err)
	}
	assert.Len(t, m.List(), 2)
}

func TestList_OldestFirst(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 0)

	release := make(chan struct{})
	first := m.Submit(context.Background(), "a", func(context.Context, Reporter) (any, error) {
		<-release
		return nil, nil
	})
	time.Sleep(time.Millisecond)
	second := m.Submit(context.Background(), "b", func(context.Context, Reporter) (any, error) {
		return nil, nil
	})
	_, err := m.Wait(waitCtx(t), second.ID)
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	close(release)
	_, err = m.Wait(waitCtx(t), first.ID)
	require.NoError(t, err)
}

func TestWait_ContextDone(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, 0)

	release := make(chan struct{})
	job := m.Submit(context.Background(), "a", func(context.Context, Reporter) (any, error) {
		<-release
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Wait(ctx, job.ID)
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
}
