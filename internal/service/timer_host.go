package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/timer"
)

// Navigation names where the client goes after the timer screen closes.
type Navigation string

const (
	NavigateStay    Navigation = ""
	NavigateVisits  Navigation = "visits"
	NavigateHistory Navigation = "history"
)

// HostEventKind tells subscribers what changed.
type HostEventKind string

const (
	HostEventTick     HostEventKind = "tick"
	HostEventPrompt   HostEventKind = "prompt"
	HostEventNavigate HostEventKind = "navigate"
)

// HostStatus is what the timer screen shows.
type HostStatus struct {
	Visit         *domain.Visit
	Timer         domain.TimerSnapshot
	PromptPending bool
}

// HostEvent is published to subscribers on every tick, when the completion
// prompt opens, and when the screen is closed.
type HostEvent struct {
	Kind     HostEventKind
	UserID   int64 // owner of the visit the event concerns
	Status   HostStatus
	Navigate Navigation
}

// TimerHost binds the single timer engine to one visit at a time and
// relays completion back to the visit records.
type TimerHost struct {
	engine *timer.Engine
	visits *VisitService

	// opMu serializes screen operations. mu guards the fields below and is
	// never held while calling into the engine, whose callbacks take it.
	opMu sync.Mutex

	mu        sync.Mutex
	visit     *domain.Visit
	prompt    bool
	promptGen uint64 // generation whose end opened the prompt
	subs      map[chan HostEvent]struct{}
}

// NewTimerHost creates a TimerHost and registers it for engine callbacks.
func NewTimerHost(engine *timer.Engine, visits *VisitService) *TimerHost {
	h := &TimerHost{
		engine: engine,
		visits: visits,
		subs:   make(map[chan HostEvent]struct{}),
	}
	engine.OnTick(h.handleTick)
	engine.OnEnd(h.handleEnd)
	return h
}

// Open enters the timer screen for a visit. Reopening the visit already on
// the timer reconciles with the durable record and keeps its pause state,
// or shows the completion prompt again if its timer has ended. Any other
// visit gets a fresh, running countdown.
func (h *TimerHost) Open(ctx context.Context, userID int64, visitID string) (HostStatus, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	v, err := h.visits.Get(ctx, userID, visitID)
	if err != nil {
		return HostStatus{}, err
	}
	if v.Completed {
		return HostStatus{}, domain.ErrVisitCompleted
	}

	current := h.engine.Snapshot()
	ended := current.VisitID == v.ID && current.State == domain.TimerEnded

	h.mu.Lock()
	h.visit = v
	h.prompt = ended
	h.promptGen = current.Generation
	h.mu.Unlock()

	switch {
	case ended:
		slog.Info("completion prompt reopened", "visit_id", v.ID, "generation", current.Generation)
	case current.VisitID == v.ID && (current.State == domain.TimerRunning || current.State == domain.TimerPaused):
		h.engine.Foreground(ctx)
	case current.State == domain.TimerIdle || current.State == domain.TimerEnded:
		if _, ok := h.engine.Restore(ctx, v.ID, v.Title, v.AllottedSeconds()); ok {
			slog.Info("timer restored", "visit_id", v.ID)
			break
		}
		h.engine.Start(v.ID, v.Title, v.AllottedSeconds())
	default:
		h.engine.Start(v.ID, v.Title, v.AllottedSeconds())
	}
	return h.status(), nil
}

// Restart begins a new countdown for the bound visit, unpaused.
func (h *TimerHost) Restart(userID int64) (HostStatus, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	v, err := h.bound(userID)
	if err != nil {
		return HostStatus{}, err
	}
	h.mu.Lock()
	h.prompt = false
	h.mu.Unlock()

	h.engine.Start(v.ID, v.Title, v.AllottedSeconds())
	return h.status(), nil
}

// PauseResume toggles between running and paused. It does nothing once the
// timer has ended.
func (h *TimerHost) PauseResume(userID int64) (HostStatus, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	if _, err := h.bound(userID); err != nil {
		return HostStatus{}, err
	}
	switch h.engine.Snapshot().State {
	case domain.TimerRunning:
		h.engine.Pause()
	case domain.TimerPaused:
		h.engine.Resume()
	}
	return h.status(), nil
}

// End discards the countdown without completing the visit and returns to
// the visit list.
func (h *TimerHost) End(userID int64) (Navigation, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	if _, err := h.bound(userID); err != nil {
		return NavigateStay, err
	}
	h.close(NavigateVisits)
	return NavigateVisits, nil
}

// ResolvePrompt answers "was the visit completed?". Yes marks the visit
// complete and goes to history; no leaves the visit untouched and goes back
// to the list. Either way the timer is discarded.
func (h *TimerHost) ResolvePrompt(ctx context.Context, userID int64, completed bool) (Navigation, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	v, err := h.bound(userID)
	if err != nil {
		return NavigateStay, err
	}
	gen := h.engine.Generation()
	h.mu.Lock()
	pending := h.promptLocked(gen)
	h.mu.Unlock()
	if !pending {
		return NavigateStay, fmt.Errorf("%w: no completion prompt is open", domain.ErrInvalidInput)
	}

	nav := NavigateVisits
	if completed {
		if _, err := h.visits.MarkComplete(ctx, userID, v.ID); err != nil {
			return NavigateStay, fmt.Errorf("mark visit complete: %w", err)
		}
		nav = NavigateHistory
	}
	h.close(nav)
	return nav, nil
}

// Background is the client leaving the screen without closing it.
func (h *TimerHost) Background(userID int64) error {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	if _, err := h.bound(userID); err != nil {
		return err
	}
	h.engine.Background()
	return nil
}

// Foreground is the client returning. A deadline that passed meanwhile
// opens the completion prompt right away.
func (h *TimerHost) Foreground(ctx context.Context, userID int64) (HostStatus, error) {
	h.opMu.Lock()
	defer h.opMu.Unlock()

	if _, err := h.bound(userID); err != nil {
		return HostStatus{}, err
	}
	h.engine.Foreground(ctx)
	return h.status(), nil
}

// Status returns the screen state for the user owning the bound visit.
func (h *TimerHost) Status(userID int64) (HostStatus, error) {
	if _, err := h.bound(userID); err != nil {
		return HostStatus{}, err
	}
	return h.status(), nil
}

// Subscribe returns a channel of host events and a function that
// unsubscribes and closes it. A slow subscriber loses its oldest pending
// events but always receives the latest.
func (h *TimerHost) Subscribe() (<-chan HostEvent, func()) {
	ch := make(chan HostEvent, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *TimerHost) bound(userID int64) (*domain.Visit, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.visit == nil || h.visit.UserID != userID {
		return nil, domain.ErrNoActiveTimer
	}
	v := *h.visit
	return &v, nil
}

func (h *TimerHost) status() HostStatus {
	snap := h.engine.Snapshot()
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked(snap)
}

// promptLocked reports whether the completion prompt is open for the given
// generation. A restart moves the generation on and so closes it.
func (h *TimerHost) promptLocked(gen uint64) bool {
	return h.prompt && h.promptGen == gen
}

func (h *TimerHost) statusLocked(snap domain.TimerSnapshot) HostStatus {
	st := HostStatus{Timer: snap, PromptPending: h.promptLocked(snap.Generation)}
	if h.visit != nil {
		v := *h.visit
		st.Visit = &v
	}
	return st
}

// close stops the engine and unbinds the visit. Callers hold opMu.
func (h *TimerHost) close(nav Navigation) {
	snap := h.engine.Stop()

	h.mu.Lock()
	var owner int64
	if h.visit != nil {
		owner = h.visit.UserID
	}
	h.visit = nil
	h.prompt = false
	h.broadcastLocked(HostEvent{Kind: HostEventNavigate, UserID: owner, Status: h.statusLocked(snap), Navigate: nav})
	h.mu.Unlock()
}

func (h *TimerHost) handleTick(snap domain.TimerSnapshot) {
	if snap.Generation != h.engine.Generation() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.visit == nil || h.visit.ID != snap.VisitID {
		return
	}
	h.broadcastLocked(HostEvent{Kind: HostEventTick, UserID: h.visit.UserID, Status: h.statusLocked(snap)})
}

func (h *TimerHost) handleEnd(snap domain.TimerSnapshot) {
	if current := h.engine.Generation(); snap.Generation != current {
		slog.Warn("dropped end of a superseded timer", "visit_id", snap.VisitID, "generation", snap.Generation, "current", current)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.visit == nil || h.visit.ID != snap.VisitID {
		slog.Info("timer ended for a visit no longer on screen", "visit_id", snap.VisitID, "generation", snap.Generation)
		return
	}
	h.prompt = true
	h.promptGen = snap.Generation
	slog.Info("timer ended", "visit_id", snap.VisitID, "generation", snap.Generation)
	h.broadcastLocked(HostEvent{Kind: HostEventPrompt, UserID: h.visit.UserID, Status: h.statusLocked(snap)})
}

func (h *TimerHost) broadcastLocked(ev HostEvent) {
	for ch := range h.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest. mu makes this the only sender.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
