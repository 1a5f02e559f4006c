package handler

import (
	"errors"
	"log/slog"
	"net/http"

	datastar "github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/merchtrax/internal/alarm"
	"github.com/msomdec/merchtrax/internal/domain"
	"github.com/msomdec/merchtrax/internal/service"
	"github.com/msomdec/merchtrax/internal/view"
)

// TimerHandler serves the timer screen: its JSON API, the page, the live
// stream and the datastar actions behind its buttons.
type TimerHandler struct {
	host   *service.TimerHost
	alarms *alarm.Hub
}

// NewTimerHandler creates a new TimerHandler.
func NewTimerHandler(host *service.TimerHost, alarms *alarm.Hub) *TimerHandler {
	return &TimerHandler{host: host, alarms: alarms}
}

func navigationURL(nav service.Navigation) string {
	if nav == service.NavigateStay {
		return "/timer"
	}
	return "/" + string(nav)
}

// HandleOpen enters the timer screen for a visit.
// POST /api/visits/{id}/timer
func (h *TimerHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Open(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "open timer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(st))
}

// HandleStatus returns the timer screen state.
// GET /api/timer
func (h *TimerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Status(user.ID)
	if err != nil {
		writeServiceError(w, "timer status", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(st))
}

// HandleRestart starts the countdown over.
// POST /api/timer/restart
func (h *TimerHandler) HandleRestart(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Restart(user.ID)
	if err != nil {
		writeServiceError(w, "restart timer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(st))
}

// HandleToggle pauses a running countdown or resumes a paused one.
// POST /api/timer/toggle
func (h *TimerHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.PauseResume(user.ID)
	if err != nil {
		writeServiceError(w, "toggle timer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(st))
}

// HandleEnd discards the countdown.
// POST /api/timer/end
// Response: {"navigate":"visits"}
func (h *TimerHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	nav, err := h.host.End(user.ID)
	if err != nil {
		writeServiceError(w, "end timer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"navigate": string(nav)})
}

// HandlePrompt answers the completion prompt.
// POST /api/timer/prompt
// Request:  {"completed": true}
// Response: {"navigate":"history"}
func (h *TimerHandler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req struct {
		Completed *bool `json:"completed"`
	}
	if err := readJSON(r, &req); err != nil || req.Completed == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	nav, err := h.host.ResolvePrompt(r.Context(), user.ID, *req.Completed)
	if err != nil {
		writeServiceError(w, "resolve completion prompt", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"navigate": string(nav)})
}

// HandleBackground tells the timer the client stopped looking.
// POST /api/timer/background
func (h *TimerHandler) HandleBackground(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.host.Background(user.ID); err != nil {
		writeServiceError(w, "background timer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleForeground tells the timer the client is back.
// POST /api/timer/foreground
func (h *TimerHandler) HandleForeground(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Foreground(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "foreground timer", err)
		return
	}
	writeJSON(w, http.StatusOK, toTimerStatusDTO(st))
}

// HandleTimerPage renders the timer screen, or the visit list when nothing
// is running for the user.
// GET /timer
func (h *TimerHandler) HandleTimerPage(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Status(user.ID)
	if err != nil {
		http.Redirect(w, r, "/visits", http.StatusSeeOther)
		return
	}
	view.TimerPage(user.DisplayName, toTimerView(st)).Render(r.Context(), w)
}

// HandleOpenForm starts a visit's timer from the visit list.
// POST /visits/{id}/timer
func (h *TimerHandler) HandleOpenForm(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if _, err := h.host.Open(r.Context(), user.ID, r.PathValue("id")); err != nil {
		status, msg := statusFor(err)
		if status == http.StatusInternalServerError {
			slog.Error("open timer", "error", err)
		}
		renderError(w, r, status, "Cannot start timer", msg)
		return
	}
	http.Redirect(w, r, "/timer", http.StatusSeeOther)
}

// HandleStream keeps the timer panel current over SSE. Ticks and the
// completion prompt patch the panel, delivered alarms are appended as toasts,
// and closing the screen redirects the browser.
// GET /timer/stream
func (h *TimerHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	events, unsubscribe := h.host.Subscribe()
	defer unsubscribe()
	alarms, unsubscribeAlarms := h.alarms.Subscribe()
	defer unsubscribeAlarms()

	sse := datastar.NewSSE(w, r)

	st, err := h.host.Status(user.ID)
	if err != nil {
		sse.Redirect("/visits")
		return
	}
	if err := patchPanel(sse, st); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.UserID != user.ID {
				continue
			}
			if ev.Kind == service.HostEventNavigate {
				sse.Redirect(navigationURL(ev.Navigate))
				return
			}
			if err := patchPanel(sse, ev.Status); err != nil {
				slog.Debug("timer stream closed", "error", err)
				return
			}
		case a, ok := <-alarms:
			if !ok {
				return
			}
			if _, err := h.host.Status(user.ID); err != nil {
				continue
			}
			if err := sse.PatchElementTempl(
				view.AlarmToast(a),
				datastar.WithSelectorID(view.ToastsID),
				datastar.WithModeAppend(),
			); err != nil {
				slog.Debug("timer stream closed", "error", err)
				return
			}
		}
	}
}

// HandleRestartAction restarts from the timer screen.
// POST /timer/restart
func (h *TimerHandler) HandleRestartAction(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Restart(user.ID)
	h.respondPanel(w, r, st, err)
}

// HandleToggleAction pauses or resumes from the timer screen.
// POST /timer/toggle
func (h *TimerHandler) HandleToggleAction(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.PauseResume(user.ID)
	h.respondPanel(w, r, st, err)
}

// HandleEndAction discards the countdown from the timer screen.
// POST /timer/end
func (h *TimerHandler) HandleEndAction(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	nav, err := h.host.End(user.ID)
	h.respondNavigate(w, r, nav, err)
}

// HandlePromptYes records the visit as completed.
// POST /timer/prompt/yes
func (h *TimerHandler) HandlePromptYes(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	nav, err := h.host.ResolvePrompt(r.Context(), user.ID, true)
	h.respondNavigate(w, r, nav, err)
}

// HandlePromptNo leaves the visit open.
// POST /timer/prompt/no
func (h *TimerHandler) HandlePromptNo(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	nav, err := h.host.ResolvePrompt(r.Context(), user.ID, false)
	h.respondNavigate(w, r, nav, err)
}

// HandleBackgroundAction is sent when the page is hidden.
// POST /timer/background
func (h *TimerHandler) HandleBackgroundAction(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := h.host.Background(user.ID); err != nil && !errors.Is(err, domain.ErrNoActiveTimer) {
		slog.Error("timer action", "path", r.URL.Path, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleForegroundAction is sent when the page is shown again.
// POST /timer/foreground
func (h *TimerHandler) HandleForegroundAction(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	st, err := h.host.Foreground(r.Context(), user.ID)
	h.respondPanel(w, r, st, err)
}

func (h *TimerHandler) respondPanel(w http.ResponseWriter, r *http.Request, st service.HostStatus, err error) {
	sse := datastar.NewSSE(w, r)
	if err != nil {
		if !errors.Is(err, domain.ErrNoActiveTimer) {
			slog.Error("timer action", "path", r.URL.Path, "error", err)
		}
		sse.Redirect("/visits")
		return
	}
	patchPanel(sse, st)
}

func (h *TimerHandler) respondNavigate(w http.ResponseWriter, r *http.Request, nav service.Navigation, err error) {
	sse := datastar.NewSSE(w, r)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			// No prompt is open; leave the screen as it is.
			return
		}
		if !errors.Is(err, domain.ErrNoActiveTimer) {
			slog.Error("timer action", "path", r.URL.Path, "error", err)
		}
		sse.Redirect("/visits")
		return
	}
	sse.Redirect(navigationURL(nav))
}

func patchPanel(sse *datastar.ServerSentEventGenerator, st service.HostStatus) error {
	return sse.PatchElementTempl(
		view.TimerPanel(toTimerView(st)),
		datastar.WithSelectorID(view.TimerPanelID),
	)
}
