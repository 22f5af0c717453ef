package events

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

const DefaultHighWaterMark = 100

// InFlightPublishTracker runs fire-and-forget publish operations off the
// caller's goroutine. Operations run one at a time in the order they were
// tracked, so batches reach the publisher FIFO. Exceeding the high-water
// mark is logged, never throttled.
type InFlightPublishTracker struct {
	highWaterMark int64

	mu      sync.Mutex
	tail    chan struct{}
	pending atomic.Int64
	warned  atomic.Bool
}

func NewInFlightPublishTracker(highWaterMark int) *InFlightPublishTracker {
	if highWaterMark <= 0 {
		highWaterMark = DefaultHighWaterMark
	}
	return &InFlightPublishTracker{highWaterMark: int64(highWaterMark)}
}

// Track schedules op after every previously tracked op and returns a
// channel closed once op has returned.
func (t *InFlightPublishTracker) Track(op func()) <-chan struct{} {
	done := make(chan struct{})

	t.mu.Lock()
	prev := t.tail
	t.tail = done
	t.mu.Unlock()

	if n := t.pending.Add(1); n > t.highWaterMark {
		if t.warned.CompareAndSwap(false, true) {
			log.WithFields(log.Fields{
				"component":       "publish",
				"in_flight":       n,
				"high_water_mark": t.highWaterMark,
			}).Warn("in-flight publishes above high-water mark")
		}
	}

	go func() {
		defer func() {
			if t.pending.Add(-1) <= t.highWaterMark {
				t.warned.Store(false)
			}
			close(done)
		}()
		if prev != nil {
			<-prev
		}
		runRecovered(op)
	}()

	return done
}

func (t *InFlightPublishTracker) InFlight() int {
	return int(t.pending.Load())
}

// Drain blocks until every tracked op has finished or ctx is done. Ops
// tracked while draining are waited for as well.
func (t *InFlightPublishTracker) Drain(ctx context.Context) error {
	for {
		t.mu.Lock()
		tail := t.tail
		t.mu.Unlock()

		if tail == nil {
			return nil
		}

		select {
		case <-tail:
		case <-ctx.Done():
			return ctx.Err()
		}

		t.mu.Lock()
		unchanged := t.tail == tail
		t.mu.Unlock()
		if unchanged {
			return nil
		}
	}
}

func runRecovered(op func()) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("component", "publish").Errorf("publish op panicked: %v", r)
		}
	}()
	op()
}
