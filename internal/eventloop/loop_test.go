package eventloop

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRunner(t *testing.T, clk clock.Clock) (*Runner, context.CancelFunc) {
	t.Helper()
	r := NewRunner(clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	t.Cleanup(cancel)
	return r, cancel
}

func TestRunnerRunsTasksInOrder(t *testing.T) {
	r, _ := startRunner(t, nil)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		r.Post(func() { got = append(got, i) })
	}
	require.NoError(t, r.Call(context.Background(), func() {}))
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestRunnerGoPostsContinuation(t *testing.T) {
	r, _ := startRunner(t, nil)

	done := make(chan string, 1)
	r.Go(func() func() {
		v := "fetched"
		return func() { done <- v }
	})
	select {
	case v := <-done:
		assert.Equal(t, "fetched", v)
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran")
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	r, _ := startRunner(t, nil)

	r.Post(func() { panic("boom") })
	var ran atomic.Bool
	require.NoError(t, r.Call(context.Background(), func() { ran.Store(true) }))
	assert.True(t, ran.Load())
}

func TestRunnerTimerStop(t *testing.T) {
	mock := clock.NewMock()
	r, _ := startRunner(t, mock)

	var fired atomic.Int32
	var keep, drop Timer
	require.NoError(t, r.Call(context.Background(), func() {
		keep = r.AfterFunc(time.Second, func() { fired.Add(1) })
		drop = r.AfterFunc(time.Second, func() { fired.Add(10) })
	}))
	assert.True(t, drop.Stop())
	assert.False(t, drop.Stop())

	mock.Add(time.Second)
	assert.Eventually(t, func() bool {
		_ = r.Call(context.Background(), func() {})
		return fired.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, keep.Stop())
}

func TestRunnerCallAfterStop(t *testing.T) {
	r, cancel := startRunner(t, nil)
	require.NoError(t, r.Call(context.Background(), func() {}))
	cancel()
	<-r.done
	assert.ErrorIs(t, r.Call(context.Background(), func() {}), ErrStopped)
}

func TestManualOrdersTimersByDueThenCreation(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	m.AfterFunc(time.Second, func() { got = append(got, "a") })
	m.AfterFunc(2*time.Second, func() { got = append(got, "c") })
	m.AfterFunc(5*time.Second, func() { got = append(got, "late") })

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 1, m.Pending())
}

func TestManualAdvanceDrainsBetweenTimers(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(time.Second, func() {
		got = append(got, "tick")
		m.Post(func() { got = append(got, "posted") })
		m.AfterFunc(time.Second, func() { got = append(got, "rearmed") })
	})
	m.AfterFunc(1500*time.Millisecond, func() { got = append(got, "mid") })

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"tick", "posted", "mid", "rearmed"}, got)
	assert.Equal(t, 0, m.Pending())
}

func TestManualStoppedTimerNeverFires(t *testing.T) {
	m := NewManual()
	fired := false
	tm := m.AfterFunc(time.Second, func() { fired = true })
	assert.Equal(t, 1, m.Pending())
	assert.True(t, tm.Stop())
	assert.Equal(t, 0, m.Pending())
	m.Advance(time.Minute)
	assert.False(t, fired)
}

func TestManualHoldWork(t *testing.T) {
	m := NewManual()
	var got []string
	m.HoldWork(true)
	m.Go(func() func() { return func() { got = append(got, "response") } })
	m.Run()
	assert.Empty(t, got)

	m.HoldWork(false)
	m.Release()
	assert.Equal(t, []string{"response"}, got)
}

func TestManualNowFollowsAdvance(t *testing.T) {
	m := NewManual()
	start := m.Now()
	m.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, m.Now().Sub(start))
}
