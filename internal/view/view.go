// Package view renders the HTML pages and datastar fragments.
package view

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// html writes a component in order and keeps the first error, so a
// component reads top to bottom and checks once at the end.
type html struct {
	w   io.Writer
	err error
}

// raw writes trusted markup.
func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

// text writes a value escaped for element content or a quoted attribute.
func (h *html) text(s string) {
	if h.err != nil {
		return
	}
	v, err := templ.JoinStringErrs(s)
	if err != nil {
		h.err = err
		return
	}
	h.raw(templ.EscapeString(v))
}

func (h *html) number(n int) {
	h.raw(strconv.Itoa(n))
}

// url writes a sanitized, escaped URL for an href or action attribute.
func (h *html) url(s string) {
	h.raw(templ.EscapeString(string(templ.URL(s))))
}

func (h *html) component(ctx context.Context, c templ.Component) {
	if h.err != nil || c == nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// page renders body inside Layout.
func page(title string, body templ.ComponentFunc) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(title).Render(templ.WithChildren(ctx, body), w)
	})
}

// Layout is the document shell with the datastar client. The page body is
// passed as children.
func Layout(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		children := templ.GetChildren(ctx)
		if children == nil {
			children = templ.NopComponent
		}
		ctx = templ.ClearChildren(ctx)

		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		h.text(title)
		h.raw(` · MerchTrax</title>`)
		h.raw(`<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"></script>`)
		h.raw(`</head><body><main>`)
		h.component(ctx, children)
		h.raw(`</main><div id="`)
		h.text(ToastsID)
		h.raw(`" aria-live="polite"></div></body></html>`)
		return h.err
	})
}

func nav(h *html, displayName string) {
	h.raw(`<nav><a href="/visits">Visits</a> <a href="/history">History</a><span class="user">`)
	h.text(displayName)
	h.raw(`</span><button data-on:click="@post('/logout')">Log out</button></nav>`)
}

// ErrorPage renders a standalone error page.
func ErrorPage(status int, title, message string) templ.Component {
	return page(title, func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section class="error"><h1>`)
		h.number(status)
		h.raw(` `)
		h.text(title)
		h.raw(`</h1><p>`)
		h.text(message)
		h.raw(`</p><a href="/visits">Back to visits</a></section>`)
		return h.err
	})
}
