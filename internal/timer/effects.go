package timer

import (
	"context"
	"time"

	"github.com/msomdec/merchtrax/internal/domain"
)

type effectKind int

const (
	effectSave effectKind = iota
	effectClear
	effectSchedule
	effectCancel
	effectTick
	effectEnd
)

// effect is one side effect of a transition. It carries everything it needs
// by value so that applying it never reads the live session.
type effect struct {
	kind     effectKind
	gen      uint64
	rec      domain.TimerRecord
	snap     domain.TimerSnapshot
	deadline time.Time
	now      time.Time
	title    string
}

// cleanup effects run regardless of generation; the others only while their
// generation is still current.
func (f effect) cleanup() bool {
	return f.kind == effectClear || f.kind == effectCancel
}

func (e *Engine) enqueue(f effect) {
	e.queue = append(e.queue, f)
}

// run applies queued effects in transition order. Only one caller drains at
// a time; a re-entrant call from a callback leaves its effects to the
// drainer already running.
func (e *Engine) run() {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	for len(e.queue) > 0 {
		f := e.queue[0]
		e.queue[0] = effect{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if f.cleanup() {
			e.apply(f, nil, nil)
		} else {
			e.dispatch(f)
		}

		e.mu.Lock()
	}
	e.queue = nil
	e.draining = false
	e.mu.Unlock()
}

// dispatch applies a generation-bound effect. The generation is checked and
// the effect applied under dispatchMu, which every generation bump also
// takes, so a restart either lands before the check or waits for the effect.
func (e *Engine) dispatch(f effect) {
	e.dispatchMu.Lock()
	defer e.dispatchMu.Unlock()

	e.mu.Lock()
	current := e.sess.generation
	onTick, onEnd := e.onTick, e.onEnd
	e.mu.Unlock()

	if f.gen != current {
		e.logger.Debug("dropped stale timer effect", "kind", int(f.kind), "generation", f.gen, "current", current)
		return
	}
	e.apply(f, onTick, onEnd)
}

func (e *Engine) apply(f effect, onTick, onEnd func(domain.TimerSnapshot)) {
	ctx, cancel := context.WithTimeout(context.Background(), effectTimeout)
	defer cancel()

	switch f.kind {
	case effectSave:
		if err := e.store.Save(ctx, f.rec); err != nil {
			e.logger.Warn("save timer record", "error", err, "generation", f.gen)
		}
	case effectClear:
		if err := e.store.Clear(ctx); err != nil {
			e.logger.Warn("clear timer record", "error", err, "generation", f.gen)
		}
	case effectSchedule:
		if err := e.alarms.Schedule(ctx, f.deadline, f.now, f.title); err != nil {
			e.logger.Error("schedule timer alarms", "error", err, "generation", f.gen)
		}
	case effectCancel:
		if err := e.alarms.Cancel(ctx); err != nil {
			e.logger.Error("cancel timer alarms", "error", err, "generation", f.gen)
		}
	case effectTick:
		if onTick != nil {
			onTick(f.snap)
		}
	case effectEnd:
		if onEnd != nil {
			onEnd(f.snap)
		}
	}
}
