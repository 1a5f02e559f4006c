package view

import (
	"context"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/msomdec/merchtrax/internal/domain"
)

// VisitsPage lists upcoming visits grouped by date, each with a button that
// opens its timer.
func VisitsPage(displayName string, groups []domain.VisitGroup) templ.Component {
	return page("Visits", func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		nav(h, displayName)
		h.raw(`<h1>Upcoming visits</h1>`)
		newVisitForm(h)
		if len(groups) == 0 {
			h.raw(`<p class="empty">No visits scheduled.</p>`)
		}
		for _, g := range groups {
			visitGroup(h, g, false)
		}
		return h.err
	})
}

// HistoryPage lists completed visits, most recent date first.
func HistoryPage(displayName string, groups []domain.VisitGroup) templ.Component {
	return page("History", func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		nav(h, displayName)
		h.raw(`<h1>Completed visits</h1>`)
		if len(groups) == 0 {
			h.raw(`<p class="empty">Nothing completed yet.</p>`)
		}
		for _, g := range groups {
			visitGroup(h, g, true)
		}
		return h.err
	})
}

func newVisitForm(h *html) {
	h.raw(`<details class="new-visit"><summary>New visit</summary><form method="post" action="/visits">`)
	h.raw(`<label>Store <input name="store_name" required></label>`)
	h.raw(`<label>Location <input name="location" required></label>`)
	h.raw(`<label>Task <input name="task_title" required></label>`)
	h.raw(`<label>Name <input name="visit_name"></label>`)
	h.raw(`<label>Date <input type="date" name="date" required></label>`)
	h.raw(`<label>Start <input type="time" name="start_time" required></label>`)
	h.raw(`<label>Minutes <input type="number" name="allotted_minutes" min="1" max="1440" required></label>`)
	h.raw(`<button>Add</button></form></details>`)
}

func visitGroup(h *html, g domain.VisitGroup, completed bool) {
	h.raw(`<section class="visit-group"><h2>`)
	h.text(formatDate(g.Date))
	h.raw(`</h2><ul>`)
	for _, v := range g.Visits {
		h.raw(`<li id="`)
		h.text("visit-" + v.ID)
		h.raw(`"><strong>`)
		h.text(v.Title)
		h.raw(`</strong> <span>`)
		h.text(v.Location)
		h.raw(`</span> <span>`)
		h.text(v.StartTime)
		h.raw(` · `)
		h.number(v.AllottedMinutes)
		h.raw(` min</span>`)
		if completed && v.CompletedAt != nil {
			h.raw(` <time>`)
			h.text(v.CompletedAt.Local().Format("3:04 PM"))
			h.raw(`</time>`)
		}
		if !completed {
			h.raw(` <form method="post" action="`)
			h.url("/visits/" + v.ID + "/timer")
			h.raw(`"><button>Start timer</button></form>`)
		}
		h.raw(`</li>`)
	}
	h.raw(`</ul></section>`)
}

func formatDate(date string) string {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}
