package scheduler

import (
	"errors"
	"sync"
	"time"
)

var ErrTickerRunning = errors.New("tick scheduler already running")

// Ticker calls back with the time elapsed since Start on every interval.
// Callbacks run one at a time on the ticker goroutine; a slow callback
// drops the ticks it overlaps instead of queueing them.
type Ticker struct {
	interval time.Duration

	mu   sync.Mutex
	stop chan struct{}
}

func NewTicker(interval time.Duration) *Ticker {
	return &Ticker{interval: interval}
}

func (t *Ticker) Start(cb func(elapsed time.Duration)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return ErrTickerRunning
	}

	stop := make(chan struct{})
	t.stop = stop
	start := time.Now()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				cb(time.Since(start))
			}
		}
	}()
	return nil
}

// Stop ends the ticker without waiting for a running callback, so it can
// be called from inside one.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}
