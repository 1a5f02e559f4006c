// Package timer implements the countdown for the single active visit.
//
// Remaining time is always derived from an absolute deadline, so a process
// that was suspended or restarted recomputes the truth on its next wake-up
// instead of resuming a stale counter. Every restart bumps a generation;
// wake-ups, persistence results and queued side effects carrying an older
// generation are dropped.
package timer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
)

// Alarms schedules the out-of-process notification for a deadline.
// Schedule must replace whatever it scheduled before.
type Alarms interface {
	Schedule(ctx context.Context, deadline, now time.Time, visitTitle string) error
	Cancel(ctx context.Context) error
}

const (
	DefaultTickInterval = time.Second
	effectTimeout       = 5 * time.Second
)

// Engine owns the countdown state machine.
type Engine struct {
	store         domain.TimerStore
	alarms        Alarms
	clock         Clock
	tickInterval  time.Duration
	persistPaused bool
	logger        *slog.Logger

	// dispatchMu is held while a generation-bound effect is checked and
	// applied, and while the generation is bumped. It is taken before mu.
	dispatchMu sync.Mutex

	mu           sync.Mutex
	sess         session
	wake         Wake
	wakeSeq      uint64
	backgrounded bool
	queue        []effect
	draining     bool
	onTick       func(domain.TimerSnapshot)
	onEnd        func(domain.TimerSnapshot)
}

type session struct {
	visitID    string
	title      string
	allotted   int
	deadline   time.Time // zero unless running
	remaining  int
	state      domain.TimerState
	generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTickInterval bounds the delay between display refreshes.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithPersistPaused keeps a paused session in the durable slot so that the
// remaining time survives a restart. Without it, pausing empties the slot.
func WithPersistPaused(v bool) Option {
	return func(e *Engine) { e.persistPaused = v }
}

// WithLogger sets the logger used for swallowed I/O failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an idle Engine.
func New(store domain.TimerStore, alarms Alarms, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		alarms:       alarms,
		clock:        SystemClock,
		tickInterval: DefaultTickInterval,
		logger:       slog.Default(),
		sess:         session{state: domain.TimerIdle},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnTick registers the callback receiving every published snapshot.
//
// Callbacks run one at a time, outside the engine lock, and only while
// their generation is current. They may read, pause, resume, background or
// foreground the engine. Start, Stop and Restore wait for the callback in
// flight to return, so a callback must not call them synchronously.
func (e *Engine) OnTick(fn func(domain.TimerSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// OnEnd registers the end-of-timer callback. It runs at most once per
// generation, after the alarms are cancelled and the durable slot cleared.
func (e *Engine) OnEnd(fn func(domain.TimerSnapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEnd = fn
}

// Start begins a new generation for the given visit. A non-positive
// allotment leaves the engine idle. Anything scheduled by the previous
// generation is cancelled first.
func (e *Engine) Start(visitID, title string, allottedSeconds int) domain.TimerSnapshot {
	e.dispatchMu.Lock()
	e.mu.Lock()
	e.retireLocked()
	gen := e.sess.generation

	if allottedSeconds <= 0 {
		e.sess = session{visitID: visitID, title: title, state: domain.TimerIdle, generation: gen}
		snap := e.snapshotLocked(e.clock.Now())
		e.enqueue(effect{kind: effectTick, gen: gen, snap: snap})
		e.mu.Unlock()
		e.dispatchMu.Unlock()
		e.run()
		return snap
	}

	now := e.clock.Now()
	e.sess = session{
		visitID:    visitID,
		title:      title,
		allotted:   allottedSeconds,
		deadline:   now.Add(time.Duration(allottedSeconds) * time.Second),
		remaining:  allottedSeconds,
		state:      domain.TimerRunning,
		generation: gen,
	}
	e.persistRunningLocked(now)
	snap := e.publishLocked(now)
	e.armLocked(now)
	e.mu.Unlock()
	e.dispatchMu.Unlock()
	e.run()
	return snap
}

// Stop discards the session and returns to idle.
func (e *Engine) Stop() domain.TimerSnapshot {
	e.dispatchMu.Lock()
	e.mu.Lock()
	e.retireLocked()
	e.sess = session{state: domain.TimerIdle, generation: e.sess.generation}
	snap := e.snapshotLocked(e.clock.Now())
	e.enqueue(effect{kind: effectTick, gen: snap.Generation, snap: snap})
	e.mu.Unlock()
	e.dispatchMu.Unlock()
	e.run()
	return snap
}

// Pause holds a running countdown. It is a no-op in any other state.
func (e *Engine) Pause() domain.TimerSnapshot {
	e.mu.Lock()
	if e.sess.state != domain.TimerRunning {
		snap := e.snapshotLocked(e.clock.Now())
		e.mu.Unlock()
		return snap
	}

	now := e.clock.Now()
	remaining := e.remainingLocked(now)
	if remaining == 0 {
		snap := e.endLocked(now)
		e.mu.Unlock()
		e.run()
		return snap
	}

	e.stopWakeLocked()
	e.sess.remaining = remaining
	e.sess.deadline = time.Time{}
	e.sess.state = domain.TimerPaused

	gen := e.sess.generation
	e.enqueue(effect{kind: effectCancel, gen: gen})
	if e.persistPaused {
		e.enqueue(effect{kind: effectSave, gen: gen, rec: e.recordLocked()})
	} else {
		e.enqueue(effect{kind: effectClear, gen: gen})
	}
	snap := e.publishLocked(now)
	e.mu.Unlock()
	e.run()
	return snap
}

// Resume continues a paused countdown from its captured remaining time.
// Resuming with nothing left ends the timer immediately.
func (e *Engine) Resume() domain.TimerSnapshot {
	e.mu.Lock()
	if e.sess.state != domain.TimerPaused {
		snap := e.snapshotLocked(e.clock.Now())
		e.mu.Unlock()
		return snap
	}

	now := e.clock.Now()
	if e.sess.remaining <= 0 {
		snap := e.endLocked(now)
		e.mu.Unlock()
		e.run()
		return snap
	}

	e.sess.deadline = now.Add(time.Duration(e.sess.remaining) * time.Second)
	e.sess.state = domain.TimerRunning
	e.persistRunningLocked(now)
	snap := e.publishLocked(now)
	e.armLocked(now)
	e.mu.Unlock()
	e.run()
	return snap
}

// Background stops display refreshes. The deadline, the durable slot and
// the scheduled alarms are left alone.
func (e *Engine) Background() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backgrounded = true
	e.stopWakeLocked()
}

// Foreground reconciles with the durable slot and resumes display
// refreshes. A deadline that passed while in the background ends the timer
// right away.
func (e *Engine) Foreground(ctx context.Context) domain.TimerSnapshot {
	e.mu.Lock()
	e.backgrounded = false
	gen := e.sess.generation
	state := e.sess.state
	e.mu.Unlock()

	var rec domain.TimerRecord
	var loaded bool
	if state == domain.TimerRunning {
		rec, loaded = e.load(ctx)
	}

	e.mu.Lock()
	if e.sess.generation != gen || e.sess.state != domain.TimerRunning {
		snap := e.snapshotLocked(e.clock.Now())
		e.mu.Unlock()
		return snap
	}
	if loaded && e.settledLocked() && !rec.Paused &&
		rec.VisitID == e.sess.visitID && rec.Generation == gen && !rec.EndTime.IsZero() {
		e.sess.deadline = rec.EndTime
	}

	now := e.clock.Now()
	remaining := e.remainingLocked(now)
	if remaining == 0 {
		snap := e.endLocked(now)
		e.mu.Unlock()
		e.run()
		return snap
	}
	e.sess.remaining = remaining
	snap := e.publishLocked(now)
	e.armLocked(now)
	e.mu.Unlock()
	e.run()
	return snap
}

// Restore adopts a durable record left by an earlier process for the same
// visit. It reports false when there is nothing to adopt, in which case the
// caller starts a fresh countdown.
func (e *Engine) Restore(ctx context.Context, visitID, title string, allottedSeconds int) (domain.TimerSnapshot, bool) {
	e.mu.Lock()
	gen := e.sess.generation
	e.mu.Unlock()

	rec, ok := e.load(ctx)

	e.dispatchMu.Lock()
	e.mu.Lock()
	snap, adopted := e.adoptLocked(rec, ok, gen, visitID, title, allottedSeconds)
	e.mu.Unlock()
	e.dispatchMu.Unlock()
	if adopted {
		e.run()
	}
	return snap, adopted
}

func (e *Engine) adoptLocked(rec domain.TimerRecord, ok bool, gen uint64, visitID, title string, allottedSeconds int) (domain.TimerSnapshot, bool) {
	if !ok || rec.VisitID != visitID || e.sess.generation != gen || !e.settledLocked() ||
		(e.sess.state != domain.TimerIdle && e.sess.state != domain.TimerEnded) {
		return e.snapshotLocked(e.clock.Now()), false
	}
	if rec.Paused && !e.persistPaused {
		return e.snapshotLocked(e.clock.Now()), false
	}

	e.retireLocked()
	gen = e.sess.generation
	now := e.clock.Now()
	e.sess = session{
		visitID:    visitID,
		title:      title,
		allotted:   allottedSeconds,
		generation: gen,
	}

	if rec.Paused {
		e.sess.state = domain.TimerPaused
		e.sess.remaining = max(rec.Remaining, 0)
		e.enqueue(effect{kind: effectSave, gen: gen, rec: e.recordLocked()})
		return e.publishLocked(now), true
	}

	e.sess.state = domain.TimerRunning
	e.sess.deadline = rec.EndTime
	remaining := e.remainingLocked(now)
	if remaining == 0 {
		return e.endLocked(now), true
	}
	e.sess.remaining = remaining
	e.persistRunningLocked(now)
	snap := e.publishLocked(now)
	e.armLocked(now)
	return snap, true
}

// Generation returns the current generation.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.generation
}

// Snapshot returns the current state with the remaining time recomputed
// from the deadline.
func (e *Engine) Snapshot() domain.TimerSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked(e.clock.Now())
}

// retireLocked invalidates everything belonging to the current generation
// and opens the next one. Callers hold dispatchMu as well as mu.
func (e *Engine) retireLocked() {
	e.stopWakeLocked()
	e.sess.generation++
	gen := e.sess.generation
	e.enqueue(effect{kind: effectCancel, gen: gen})
	e.enqueue(effect{kind: effectClear, gen: gen})
}

func (e *Engine) endLocked(now time.Time) domain.TimerSnapshot {
	e.stopWakeLocked()
	e.sess.state = domain.TimerEnded
	e.sess.remaining = 0
	e.sess.deadline = time.Time{}

	gen := e.sess.generation
	e.enqueue(effect{kind: effectCancel, gen: gen})
	e.enqueue(effect{kind: effectClear, gen: gen})
	snap := e.publishLocked(now)
	e.enqueue(effect{kind: effectEnd, gen: gen, snap: snap})
	return snap
}

func (e *Engine) persistRunningLocked(now time.Time) {
	gen := e.sess.generation
	e.enqueue(effect{kind: effectSave, gen: gen, rec: e.recordLocked()})
	e.enqueue(effect{kind: effectSchedule, gen: gen, deadline: e.sess.deadline, now: now, title: e.sess.title})
}

func (e *Engine) publishLocked(now time.Time) domain.TimerSnapshot {
	snap := e.snapshotLocked(now)
	e.enqueue(effect{kind: effectTick, gen: snap.Generation, snap: snap})
	return snap
}

func (e *Engine) recordLocked() domain.TimerRecord {
	rec := domain.TimerRecord{
		EndTime:    e.sess.deadline,
		Paused:     e.sess.state == domain.TimerPaused,
		VisitID:    e.sess.visitID,
		Generation: e.sess.generation,
	}
	if rec.Paused {
		rec.Remaining = e.sess.remaining
	}
	return rec
}

// armLocked schedules the next display refresh: at most one tick interval
// away, sooner when the deadline is closer.
func (e *Engine) armLocked(now time.Time) {
	e.stopWakeLocked()
	if e.backgrounded {
		return
	}
	d := e.sess.deadline.Sub(now)
	if d > e.tickInterval {
		d = e.tickInterval
	}
	if d < 0 {
		d = 0
	}
	gen, seq := e.sess.generation, e.wakeSeq
	e.wake = e.clock.AfterFunc(d, func() { e.onWake(gen, seq) })
}

func (e *Engine) stopWakeLocked() {
	if e.wake != nil {
		e.wake.Stop()
		e.wake = nil
	}
	e.wakeSeq++
}

func (e *Engine) onWake(gen, seq uint64) {
	e.mu.Lock()
	if gen != e.sess.generation || seq != e.wakeSeq || e.sess.state != domain.TimerRunning {
		e.mu.Unlock()
		return
	}
	e.wake = nil

	now := e.clock.Now()
	remaining := e.remainingLocked(now)
	if remaining == 0 {
		e.endLocked(now)
	} else {
		e.sess.remaining = remaining
		e.publishLocked(now)
		e.armLocked(now)
	}
	e.mu.Unlock()
	e.run()
}

func (e *Engine) remainingLocked(now time.Time) int {
	switch e.sess.state {
	case domain.TimerRunning:
		return secondsUntil(e.sess.deadline, now)
	case domain.TimerPaused:
		return max(e.sess.remaining, 0)
	default:
		return 0
	}
}

func (e *Engine) snapshotLocked(now time.Time) domain.TimerSnapshot {
	snap := domain.TimerSnapshot{
		VisitID:          e.sess.visitID,
		VisitTitle:       e.sess.title,
		AllottedSeconds:  e.sess.allotted,
		RemainingSeconds: e.remainingLocked(now),
		State:            e.sess.state,
		Generation:       e.sess.generation,
	}
	if e.sess.state == domain.TimerRunning {
		d := e.sess.deadline
		snap.Deadline = &d
	}
	return snap
}

// settledLocked reports whether every queued side effect has been applied,
// so that the durable slot reflects the in-memory session.
func (e *Engine) settledLocked() bool {
	return len(e.queue) == 0 && !e.draining
}

func (e *Engine) load(ctx context.Context) (domain.TimerRecord, bool) {
	rec, err := e.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			e.logger.Warn("load timer record", "error", err)
		}
		return domain.TimerRecord{}, false
	}
	return rec, true
}

// secondsUntil rounds the time left to whole seconds, clamping anything
// negative or non-finite to zero.
func secondsUntil(deadline, now time.Time) int {
	secs := math.Round(deadline.Sub(now).Seconds())
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0
	}
	return int(secs)
}
