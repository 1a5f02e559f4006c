package alarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/timer"
)

// Scheduler is the process-wide notification scheduler. Pending alarms are
// persisted so that a restarted process still delivers them, late ones
// immediately. There is exactly one per process; construct it in main.
type Scheduler struct {
	repo    domain.AlarmRepository
	deliver Deliverer
	clock   timer.Clock

	mu      sync.Mutex
	armed   map[string]armedAlarm
	seq     uint64
	started sync.Once
	closed  bool
}

type armedAlarm struct {
	wake timer.Wake
	seq  uint64
}

// NewScheduler creates a Scheduler. Call Start once to re-arm alarms left by
// a previous process.
func NewScheduler(repo domain.AlarmRepository, deliver Deliverer, clock timer.Clock) *Scheduler {
	if clock == nil {
		clock = timer.SystemClock
	}
	return &Scheduler{
		repo:    repo,
		deliver: deliver,
		clock:   clock,
		armed:   make(map[string]armedAlarm),
	}
}

// Start re-arms every persisted alarm. Only the first call does anything.
func (s *Scheduler) Start(ctx context.Context) error {
	var err error
	s.started.Do(func() {
		var pending []domain.Alarm
		pending, err = s.repo.List(ctx)
		if err != nil {
			err = fmt.Errorf("list pending alarms: %w", err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, a := range pending {
			if _, ok := s.armed[a.ID]; ok {
				continue
			}
			s.armLocked(a)
		}
		slog.Info("alarm scheduler started", "pending", len(pending))
	})
	return err
}

// ScheduleAt persists the alarm and arms it, replacing any alarm with the
// same identifier.
func (s *Scheduler) ScheduleAt(ctx context.Context, a domain.Alarm) error {
	if a.ID == "" {
		return fmt.Errorf("%w: alarm id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("alarm scheduler closed")
	}
	s.disarmLocked(a.ID)
	if err := s.repo.Put(ctx, a); err != nil {
		return fmt.Errorf("persist alarm: %w", err)
	}
	s.armLocked(a)
	return nil
}

// Cancel removes a pending alarm. Cancelling an unknown id is not an error.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked(id)
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete alarm: %w", err)
	}
	return nil
}

// CancelAll cancels each id, attempting all of them.
func (s *Scheduler) CancelAll(ctx context.Context, ids []string) error {
	var errs []error
	for _, id := range ids {
		if err := s.Cancel(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Pending returns the identifiers currently armed.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.armed))
	for id := range s.armed {
		ids = append(ids, id)
	}
	return ids
}

// Close disarms everything. Persisted alarms stay for the next process.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.armed {
		s.disarmLocked(id)
	}
	s.closed = true
}

func (s *Scheduler) armLocked(a domain.Alarm) {
	s.seq++
	seq := s.seq
	d := a.FireAt.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	s.armed[a.ID] = armedAlarm{
		wake: s.clock.AfterFunc(d, func() { s.fire(a, seq) }),
		seq:  seq,
	}
}

func (s *Scheduler) disarmLocked(id string) {
	if cur, ok := s.armed[id]; ok {
		cur.wake.Stop()
		delete(s.armed, id)
	}
}

func (s *Scheduler) fire(a domain.Alarm, seq uint64) {
	s.mu.Lock()
	cur, ok := s.armed[a.ID]
	if !ok || cur.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.armed, a.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := s.repo.Delete(ctx, a.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Error("delete delivered alarm", "alarm_id", a.ID, "error", err)
	}
	cancel()
	s.mu.Unlock()

	s.deliver.Deliver(a)
}
