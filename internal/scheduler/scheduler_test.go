package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_Schedule(t *testing.T) {
	timer := NewTimer()
	defer timer.Stop()

	fired := make(chan time.Time, 1)
	start := time.Now()
	_, err := timer.Schedule(50*time.Millisecond, func() { fired <- time.Now() })
	require.NoError(t, err)

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 40*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not run")
	}

	// A one-shot task never fires twice.
	select {
	case <-fired:
		t.Fatal("task ran twice")
	case <-time.After(150 * time.Millisecond):
	}
	assert.Zero(t, timer.Pending())
}

func TestTimer_ScheduleImmediate(t *testing.T) {
	timer := NewTimer()
	defer timer.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	_, err := timer.ScheduleImmediate(wg.Done)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate task did not run")
	}
}

func TestTimer_Clear(t *testing.T) {
	timer := NewTimer()
	defer timer.Stop()

	var ran atomic.Bool
	id, err := timer.Schedule(100*time.Millisecond, func() { ran.Store(true) })
	require.NoError(t, err)
	assert.Equal(t, 1, timer.Pending())

	timer.Clear(id)
	timer.Clear(id)
	timer.Clear("unknown")

	time.Sleep(250 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.Zero(t, timer.Pending())
}

func TestTicker_ReportsElapsed(t *testing.T) {
	ticker := NewTicker(10 * time.Millisecond)

	var (
		mu      sync.Mutex
		elapsed []time.Duration
	)
	require.NoError(t, ticker.Start(func(d time.Duration) {
		mu.Lock()
		elapsed = append(elapsed, d)
		mu.Unlock()
	}))
	assert.ErrorIs(t, ticker.Start(func(time.Duration) {}), ErrTickerRunning)

	time.Sleep(100 * time.Millisecond)
	ticker.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(elapsed), 3)
	for i := 1; i < len(elapsed); i++ {
		assert.Greater(t, elapsed[i], elapsed[i-1])
	}
}

func TestTicker_StopFromCallback(t *testing.T) {
	ticker := NewTicker(5 * time.Millisecond)

	var calls atomic.Int32
	require.NoError(t, ticker.Start(func(time.Duration) {
		calls.Add(1)
		ticker.Stop()
	}))

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	// Restart after stop.
	require.NoError(t, ticker.Start(func(time.Duration) {}))
	ticker.Stop()
}
