package view

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/msomdec/merchtrax/internal/domain"
)

// Element ids patched over the timer stream.
const (
	TimerPanelID = "timer-panel"
	ToastsID     = "toasts"
)

// TimerView is what the timer screen needs to draw itself.
type TimerView struct {
	VisitTitle    string
	Location      string
	Remaining     int
	Allotted      int
	State         domain.TimerState
	PromptPending bool
}

// FormatRemaining renders seconds as M:SS, or H:MM:SS from one hour up.
func FormatRemaining(secs int) string {
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// TimerPage is the full timer screen. It opens the SSE stream that keeps the
// panel current and tells the server when the tab is hidden or shown.
func TimerPage(displayName string, tv TimerView) templ.Component {
	return page(tv.VisitTitle, func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		nav(h, displayName)
		h.raw(`<div data-init="@get('/timer/stream')" `)
		h.raw(`data-on:visibilitychange__window="document.hidden ? @post('/timer/background') : @post('/timer/foreground')">`)
		h.component(ctx, TimerPanel(tv))
		h.raw(`</div>`)
		return h.err
	})
}

// TimerPanel is the countdown with its controls, or the completion prompt
// once the timer has ended.
func TimerPanel(tv TimerView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section id="`)
		h.text(TimerPanelID)
		h.raw(`" class="timer `)
		h.text(string(tv.State))
		h.raw(`"><h1>`)
		h.text(tv.VisitTitle)
		h.raw(`</h1>`)
		if tv.Location != "" {
			h.raw(`<p class="location">`)
			h.text(tv.Location)
			h.raw(`</p>`)
		}

		if tv.PromptPending {
			h.component(ctx, CompletionPrompt(tv.VisitTitle))
			h.raw(`</section>`)
			return h.err
		}

		toggle := "Pause"
		if tv.State == domain.TimerPaused {
			toggle = "Resume"
		}
		h.raw(`<p class="countdown" role="timer">`)
		h.text(FormatRemaining(tv.Remaining))
		h.raw(`</p><p class="allotted">of `)
		h.text(FormatRemaining(tv.Allotted))
		h.raw(`</p><div class="controls">`)
		h.raw(`<button data-on:click="@post('/timer/restart')">Restart</button>`)
		h.raw(`<button data-on:click="@post('/timer/toggle')">`)
		h.text(toggle)
		h.raw(`</button><button data-on:click="@post('/timer/end')">End</button>`)
		h.raw(`</div></section>`)
		return h.err
	})
}

// CompletionPrompt asks whether the visit was completed.
func CompletionPrompt(visitTitle string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="prompt" role="dialog"><h2>Time's up!</h2><p>Was the visit to `)
		h.text(visitTitle)
		h.raw(` completed?</p>`)
		h.raw(`<button data-on:click="@post('/timer/prompt/yes')">Yes</button>`)
		h.raw(`<button data-on:click="@post('/timer/prompt/no')">No</button></div>`)
		return h.err
	})
}

// AlarmToast shows a delivered notification; appended to the toasts region.
func AlarmToast(a domain.Alarm) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="toast" id="`)
		h.text(a.ID)
		h.raw(`"><strong>`)
		h.text(a.Title)
		h.raw(`</strong> <span>`)
		h.text(a.Body)
		h.raw(`</span></div>`)
		return h.err
	})
}
