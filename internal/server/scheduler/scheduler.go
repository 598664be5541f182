// Package scheduler triggers per-subject jobs on a cadence.
//
// A single loop drives every subject: it sleeps until the earliest run
// time, runs that subject's job, and schedules the subject again. Jobs
// never overlap.
package scheduler

import (
	"container/heap"
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/clock"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/google/uuid"
)

// Job runs one scheduled pass for subject. Errors are logged; the subject
// is scheduled again either way.
type Job func(ctx context.Context, subject string) error

// Scheduler is a min-heap of subjects keyed by their next run time.
type Scheduler struct {
	clock   clock.Clock
	cadence Cadence
	job     Job
	randN   func(n int64) int64
	logger  logging.Logger

	mu        sync.Mutex
	queue     entryHeap
	bySubject map[string]*entry
	wake      chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand replaces the jitter source.
func WithRand(randN func(n int64) int64) Option {
	return func(s *Scheduler) { s.randN = randN }
}

// New returns a Scheduler running job for each subject on cadence.
func New(c clock.Clock, cadence Cadence, job Job, logger logging.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:     c,
		cadence:   cadence,
		job:       job,
		randN:     rand.Int64N,
		logger:    logger.With("module", "scheduler"),
		bySubject: map[string]*entry{},
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add schedules subject from now. Adding a known subject is a no-op.
func (s *Scheduler) Add(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySubject[subject]; ok {
		return
	}
	e := &entry{subject: subject, next: s.cadence.Next(s.clock.Now(), s.randN)}
	s.bySubject[subject] = e
	heap.Push(&s.queue, e)
	s.notify()
}

// Remove stops scheduling subject. A run already in progress finishes.
func (s *Scheduler) Remove(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.bySubject[subject]
	if !ok {
		return
	}
	delete(s.bySubject, subject)
	if e.index >= 0 {
		heap.Remove(&s.queue, e.index)
	}
	s.notify()
}

// Next returns the earliest scheduled subject and its run time.
func (s *Scheduler) Next() (string, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", time.Time{}, false
	}
	return s.queue[0].subject, s.queue[0].next, true
}

// Len returns the number of scheduled subjects.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bySubject)
}

func (s *Scheduler) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run drives the loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info(ctx, "scheduler started", "interval", s.cadence.Interval.String(), "daily", s.cadence.Daily())

	for {
		s.mu.Lock()
		var timer <-chan time.Time
		if len(s.queue) > 0 {
			timer = s.clock.After(s.queue[0].next.Sub(s.clock.Now()))
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopped")
			return ctx.Err()
		case <-s.wake:
			continue
		case <-timer:
		}

		e := s.popDue()
		if e == nil {
			continue
		}

		s.execute(ctx, e.subject)

		s.mu.Lock()
		if s.bySubject[e.subject] == e {
			e.next = s.cadence.Next(s.clock.Now(), s.randN)
			heap.Push(&s.queue, e)
		}
		s.mu.Unlock()
	}
}

func (s *Scheduler) popDue() *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 || s.queue[0].next.After(s.clock.Now()) {
		return nil
	}
	return heap.Pop(&s.queue).(*entry)
}

func (s *Scheduler) execute(ctx context.Context, subject string) {
	runID := uuid.NewString()
	ctx = logging.WithAttrs(ctx, "run_id", runID, "subject", subject)

	start := s.clock.Now()
	s.logger.Info(ctx, "scheduled run started")

	if err := s.job(ctx, subject); err != nil {
		s.logger.Error(ctx, "scheduled run failed", "error", err, "elapsed", s.clock.Now().Sub(start).String())
		return
	}
	s.logger.Info(ctx, "scheduled run finished", "elapsed", s.clock.Now().Sub(start).String())
}
