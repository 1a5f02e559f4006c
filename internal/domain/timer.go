package domain

import (
	"context"
	"time"
)

// TimerState is the phase of the single active countdown.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
	TimerEnded   TimerState = "ended"
)

// TimerSnapshot is a point-in-time copy of the countdown. It is what the
// engine publishes on every tick and what callers read back.
type TimerSnapshot struct {
	VisitID          string
	VisitTitle       string
	AllottedSeconds  int
	RemainingSeconds int
	Deadline         *time.Time
	State            TimerState
	Generation       uint64
}

// Paused reports whether the countdown is held.
func (s TimerSnapshot) Paused() bool { return s.State == TimerPaused }

// Ended reports whether the end-of-timer effect has fired for this generation.
func (s TimerSnapshot) Ended() bool { return s.State == TimerEnded }

// TimerRecord is the durable slot mirroring a running countdown. It exists
// only while the timer runs, unless paused sessions are configured to survive
// a restart, in which case Paused is set and Remaining holds the seconds left.
type TimerRecord struct {
	EndTime    time.Time
	Paused     bool
	Remaining  int
	VisitID    string
	Generation uint64
}

// TimerStore is the single persisted slot surviving process restarts.
// Load returns ErrNotFound when the slot is empty.
type TimerStore interface {
	Save(ctx context.Context, rec TimerRecord) error
	Load(ctx context.Context) (TimerRecord, error)
	Clear(ctx context.Context) error
}

// Alarm is one scheduled local notification.
type Alarm struct {
	ID     string
	FireAt time.Time
	Title  string
	Body   string
}

// AlarmScheduler schedules notifications at absolute instants. Alarms are
// delivered even if nothing in the application is waiting for them.
type AlarmScheduler interface {
	ScheduleAt(ctx context.Context, alarm Alarm) error
	Cancel(ctx context.Context, id string) error
	CancelAll(ctx context.Context, ids []string) error
}

// AlarmRepository persists pending alarms for the scheduler.
type AlarmRepository interface {
	Put(ctx context.Context, alarm Alarm) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Alarm, error)
}
