// Package alarm turns a timer deadline into scheduled local notifications
// and delivers them when they come due.
package alarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
)

const (
	IDPrefix = "timer-complete"
	Title    = "Timer Complete!"

	DefaultBurstCount   = 10
	DefaultBurstSpacing = 500 * time.Millisecond
	DefaultMinLead      = time.Second
)

// Body is the notification text for a visit.
func Body(visitTitle string) string {
	return "Time's up for: " + visitTitle
}

// Planner schedules a fixed set of alarms under deterministic identifiers,
// so that cancelling never depends on ids handed out earlier.
type Planner struct {
	scheduler domain.AlarmScheduler
	ids       []string
	offsets   []time.Duration
	minLead   time.Duration
}

// Single schedules one alarm exactly at the deadline.
func Single(s domain.AlarmScheduler, minLead time.Duration) *Planner {
	return Burst(s, 1, 0, minLead)
}

// Burst schedules n alarms at deadline, deadline+spacing, deadline+2*spacing
// and so on, raising the odds that at least one is noticed.
func Burst(s domain.AlarmScheduler, n int, spacing, minLead time.Duration) *Planner {
	if n < 1 {
		n = 1
	}
	p := &Planner{
		scheduler: s,
		ids:       make([]string, n),
		offsets:   make([]time.Duration, n),
		minLead:   minLead,
	}
	for i := range n {
		p.ids[i] = fmt.Sprintf("%s-%d", IDPrefix, i)
		p.offsets[i] = time.Duration(i) * spacing
	}
	return p
}

// IDs returns the identifiers this planner owns.
func (p *Planner) IDs() []string {
	return append([]string(nil), p.ids...)
}

// Schedule cancels anything previously scheduled and arms the alarms for
// deadline. A deadline closer than the minimum lead is not scheduled.
func (p *Planner) Schedule(ctx context.Context, deadline, now time.Time, visitTitle string) error {
	if err := p.Cancel(ctx); err != nil {
		return fmt.Errorf("cancel previous alarms: %w", err)
	}
	if deadline.Sub(now) < p.minLead {
		return nil
	}

	var errs []error
	for i, id := range p.ids {
		a := domain.Alarm{
			ID:     id,
			FireAt: deadline.Add(p.offsets[i]),
			Title:  Title,
			Body:   Body(visitTitle),
		}
		if err := p.scheduler.ScheduleAt(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Cancel removes every alarm this planner may have scheduled.
func (p *Planner) Cancel(ctx context.Context) error {
	return p.scheduler.CancelAll(ctx, p.ids)
}
