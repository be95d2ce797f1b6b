// Package scheduler runs periodic tasks and queued requests on one goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	queueSize = 64
	// maxIdle bounds how long Run sleeps, so tasks registered while running
	// are picked up.
	maxIdle = time.Second
)

// ErrQueueFull is returned by Do when requests arrive faster than the loop drains them.
var ErrQueueFull = errors.New("scheduler queue is full")

// ErrNotFinished is returned by DoWait when the request was queued but ctx
// ended before it ran. The request still runs later.
var ErrNotFinished = errors.New("request queued but not finished")

var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a cron expression or descriptor such as "@every 5s".
func ParseSchedule(expr string) (cron.Schedule, error) {
	return parser.Parse(expr)
}

// Period is a fixed-interval schedule. Unlike cron.Every it keeps sub-second
// precision.
type Period time.Duration

func (p Period) Next(t time.Time) time.Time {
	d := time.Duration(p)
	if d <= 0 {
		d = time.Second
	}
	return t.Add(d)
}

type task struct {
	name     string
	schedule cron.Schedule
	fn       func()
	next     time.Time
	runs     uint64
	panics   uint64
}

// TaskStatus describes a registered task.
type TaskStatus struct {
	Name    string    `json:"name"`
	NextRun time.Time `json:"nextRun"`
	Runs    uint64    `json:"runs"`
	Panics  uint64    `json:"panics"`
}

// Scheduler runs every periodic task and every queued request on a single
// goroutine. Tasks that are due on the same tick run in registration order.
// Nothing registered with or queued on the scheduler may block.
type Scheduler struct {
	mu    sync.Mutex
	tasks []*task

	queue chan func()
	now   func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		queue: make(chan func(), queueSize),
		now:   time.Now,
	}
}

// Register adds a task. Its first run is on the next tick.
func (s *Scheduler) Register(name string, schedule cron.Schedule, fn func()) {
	if fn == nil || schedule == nil {
		panic(fmt.Sprintf("scheduler: task %s needs a schedule and a function", name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = append(s.tasks, &task{name: name, schedule: schedule, fn: fn})
	logrus.WithField("task", name).Debug("task registered")
}

// Tick runs every task due at now and returns how many ran.
func (s *Scheduler) Tick(now time.Time) int {
	s.mu.Lock()
	var due []*task
	for _, t := range s.tasks {
		if t.next.IsZero() || !now.Before(t.next) {
			due = append(due, t)
			// A late tick runs a task once and does not try to catch up.
			t.next = t.schedule.Next(now)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		ok := s.call(t.name, t.fn)

		s.mu.Lock()
		t.runs++
		if !ok {
			t.panics++
		}
		s.mu.Unlock()
	}
	return len(due)
}

// untilNext returns how long Run may sleep before the earliest task is due.
func (s *Scheduler) untilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := maxIdle
	for _, t := range s.tasks {
		if t.next.IsZero() {
			return 0
		}
		if d := t.next.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// Do queues fn to run on the scheduler goroutine between ticks.
func (s *Scheduler) Do(fn func()) error {
	select {
	case s.queue <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// DoWait queues fn and waits until it has run. It must not be called from
// the scheduler goroutine.
func (s *Scheduler) DoWait(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.queue <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotFinished, ctx.Err())
	}
}

// Run drives the scheduler until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	logrus.Debug("scheduler started")
	defer logrus.Debug("scheduler stopped")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-s.queue:
			s.call("request", fn)
		case <-timer.C:
			now := s.now()
			s.Tick(now)
			timer.Reset(s.untilNext(s.now()))
		}
	}
}

// Status returns a snapshot of every registered task.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		ret = append(ret, TaskStatus{Name: t.name, NextRun: t.next, Runs: t.runs, Panics: t.panics})
	}
	return ret
}

// call runs fn and reports whether it returned normally.
func (s *Scheduler) call(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"task":  name,
				"panic": r,
			}).Error("task panicked")
			ok = false
		}
	}()

	fn()
	return true
}
