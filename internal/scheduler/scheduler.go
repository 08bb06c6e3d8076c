// Package scheduler runs delayed one-shot jobs and named daily jobs on
// wall-clock times in a fixed location.
package scheduler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler owns every pending timer. The zero value is not usable; call New.
type Scheduler struct {
	mu      sync.Mutex
	loc     *time.Location
	now     func() time.Time
	daily   map[string]*time.Timer
	pending map[*time.Timer]struct{}
	stopped bool
	wg      sync.WaitGroup
	log     *log.Entry
}

// New creates a scheduler that interprets daily times in loc (UTC when nil).
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		loc:     loc,
		now:     time.Now,
		daily:   make(map[string]*time.Timer),
		pending: make(map[*time.Timer]struct{}),
		log:     log.WithFields(log.Fields{"component": "scheduler"}),
	}
}

// After runs fn once after delay. It is a no-op once the scheduler is stopped.
func (s *Scheduler) After(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, t)
		stopped := s.stopped
		if !stopped {
			s.wg.Add(1)
		}
		s.mu.Unlock()
		if stopped {
			return
		}
		defer s.wg.Done()
		s.run("once", fn)
	})
	s.pending[t] = struct{}{}
}

// Daily runs fn every day at hour:minute, replacing any job already
// registered under name.
func (s *Scheduler) Daily(name string, hour, minute int, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if old, ok := s.daily[name]; ok {
		old.Stop()
	}
	s.scheduleLocked(name, hour, minute, fn)

	s.log.WithFields(log.Fields{"job": name, "at": formatClock(hour, minute)}).Debug("Daily job scheduled")
}

func (s *Scheduler) scheduleLocked(name string, hour, minute int, fn func()) {
	var t *time.Timer
	now := s.now()
	delay := NextRun(now, hour, minute, s.loc).Sub(now)
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		// A replaced or cancelled job may still fire once its timer raced Stop.
		if s.stopped || s.daily[name] != t {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.scheduleLocked(name, hour, minute, fn)
		s.mu.Unlock()

		defer s.wg.Done()
		s.run(name, fn)
	})
	s.daily[name] = t
}

// Cancel removes the named daily job and reports whether it existed.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.daily[name]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.daily, name)
	return true
}

// Jobs returns the names of the registered daily jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.daily))
	for name := range s.daily {
		names = append(names, name)
	}
	return names
}

// Stop cancels every timer and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for name, t := range s.daily {
		t.Stop()
		delete(s.daily, name)
	}
	for t := range s.pending {
		t.Stop()
		delete(s.pending, t)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(log.Fields{"job": name, "panic": r}).Error("Scheduled job panicked")
		}
	}()
	fn()
}

// NextRun returns the first instant after now whose wall clock in loc reads
// hour:minute.
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

func formatClock(hour, minute int) string {
	return time.Date(0, 1, 1, hour, minute, 0, 0, time.UTC).Format("15:04")
}
