// Package timertest provides fakes for exercising the timer engine and the
// components around it without real time passing.
package timertest

import (
	"context"
	"sync"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/timer"
)

// ManualClock is a timer.Clock that only moves when told to.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*manualWake
}

type manualWake struct {
	clock   *ManualClock
	at      time.Time
	f       func()
	fired   bool
	stopped bool
}

func (w *manualWake) Stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()
	if w.fired || w.stopped {
		return false
	}
	w.stopped = true
	return true
}

// NewManualClock returns a clock reading start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) timer.Wake {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &manualWake{clock: c, at: c.now.Add(d), f: f}
	c.waiters = append(c.waiters, w)
	return w
}

// Advance moves the clock forward, firing due callbacks in time order.
// Callbacks run without the clock lock held and may schedule more.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualWake
		for _, w := range c.waiters {
			if w.fired || w.stopped || w.at.After(target) {
				continue
			}
			if next == nil || w.at.Before(next.at) {
				next = w
			}
		}
		if next == nil {
			c.now = target
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// Jump moves the clock forward without firing anything, the way a
// suspended process sees time pass.
func (c *ManualClock) Jump(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Pending reports how many callbacks are still armed.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.fired && !w.stopped {
			n++
		}
	}
	return n
}

func (c *ManualClock) compactLocked() {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.fired && !w.stopped {
			live = append(live, w)
		}
	}
	c.waiters = live
}

// MemoryStore is an in-memory domain.TimerStore. Setting Err makes every
// call fail with it.
type MemoryStore struct {
	mu     sync.Mutex
	rec    *domain.TimerRecord
	Err    error
	Saves  int
	Clears int
}

func (s *MemoryStore) Save(_ context.Context, rec domain.TimerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Saves++
	s.rec = &rec
	return nil
}

func (s *MemoryStore) Load(_ context.Context) (domain.TimerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return domain.TimerRecord{}, s.Err
	}
	if s.rec == nil {
		return domain.TimerRecord{}, domain.ErrNotFound
	}
	return *s.rec, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Clears++
	s.rec = nil
	return nil
}

// Record returns the stored record, if any.
func (s *MemoryStore) Record() (domain.TimerRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil {
		return domain.TimerRecord{}, false
	}
	return *s.rec, true
}

// Put seeds the slot, bypassing Err.
func (s *MemoryStore) Put(rec domain.TimerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = &rec
}

// Alarms is a timer.Alarms that records what is armed.
type Alarms struct {
	mu        sync.Mutex
	Err       error
	deadline  *time.Time
	title     string
	Schedules int
	Cancels   int
}

func (a *Alarms) Schedule(_ context.Context, deadline, _ time.Time, visitTitle string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Schedules++
	if a.Err != nil {
		return a.Err
	}
	a.deadline = &deadline
	a.title = visitTitle
	return nil
}

func (a *Alarms) Cancel(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Cancels++
	if a.Err != nil {
		return a.Err
	}
	a.deadline = nil
	a.title = ""
	return nil
}

// Armed returns the deadline and title of the scheduled alarms, if any.
func (a *Alarms) Armed() (time.Time, string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deadline == nil {
		return time.Time{}, "", false
	}
	return *a.deadline, a.title, true
}
