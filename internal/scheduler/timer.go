package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"crashgame/internal/ports"
)

// Timer runs one-shot callbacks on a gocron scheduler. Callbacks run on
// the scheduler's executor goroutines.
type Timer struct {
	scheduler *gocron.Scheduler

	mu   sync.Mutex
	jobs map[ports.TimerID]*gocron.Job
}

func NewTimer() *Timer {
	s := gocron.NewScheduler(time.UTC)
	s.StartAsync()
	return &Timer{
		scheduler: s,
		jobs:      make(map[ports.TimerID]*gocron.Job),
	}
}

// Schedule runs fn once after delay.
func (t *Timer) Schedule(delay time.Duration, fn func()) (ports.TimerID, error) {
	if delay <= 0 {
		return t.ScheduleImmediate(fn)
	}
	return t.add(fn, delay, true)
}

// ScheduleImmediate runs fn once, as soon as the executor picks it up.
func (t *Timer) ScheduleImmediate(fn func()) (ports.TimerID, error) {
	return t.add(fn, time.Millisecond, false)
}

// add registers a single-run job. mu is held until the job is recorded so
// a job firing right away still finds its id.
func (t *Timer) add(fn func(), every time.Duration, wait bool) (ports.TimerID, error) {
	id := ports.TimerID(uuid.NewString())

	task := func() {
		t.mu.Lock()
		_, ok := t.jobs[id]
		delete(t.jobs, id)
		t.mu.Unlock()
		if !ok {
			return
		}
		fn()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.scheduler.Every(every)
	if wait {
		s = s.WaitForSchedule()
	}
	job, err := s.LimitRunsTo(1).Do(task)
	if err != nil {
		return "", fmt.Errorf("failed to schedule task: %w", err)
	}
	t.jobs[id] = job
	return id, nil
}

// Clear cancels a pending callback. Clearing a fired or unknown id is a
// no-op.
func (t *Timer) Clear(id ports.TimerID) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	delete(t.jobs, id)
	t.mu.Unlock()

	if ok {
		t.scheduler.RemoveByReference(job)
	}
}

func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

func (t *Timer) Stop() {
	t.scheduler.Stop()
	log.WithField("component", "scheduler").Debug("timer stopped")
}
