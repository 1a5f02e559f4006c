package view

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// LoginPage renders the sign-in form. errMsg is shown above the form when set.
func LoginPage(errMsg string) templ.Component {
	return page("Log in", func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section class="auth"><h1>Log in</h1>`)
		formError(h, errMsg)
		h.raw(`<form method="post" action="/login">`)
		h.raw(`<label>Email <input type="email" name="email" required autocomplete="username"></label>`)
		h.raw(`<label>Password <input type="password" name="password" required autocomplete="current-password"></label>`)
		h.raw(`<button>Log in</button></form>`)
		h.raw(`<p>No account? <a href="/register">Register</a></p></section>`)
		return h.err
	})
}

// RegisterPage renders the sign-up form.
func RegisterPage(errMsg string) templ.Component {
	return page("Register", func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<section class="auth"><h1>Register</h1>`)
		formError(h, errMsg)
		h.raw(`<form method="post" action="/register">`)
		h.raw(`<label>Email <input type="email" name="email" required></label>`)
		h.raw(`<label>Name <input type="text" name="display_name" required></label>`)
		h.raw(`<label>Password <input type="password" name="password" required minlength="8"></label>`)
		h.raw(`<label>Confirm <input type="password" name="confirm_password" required minlength="8"></label>`)
		h.raw(`<button>Create account</button></form>`)
		h.raw(`<p>Already registered? <a href="/login">Log in</a></p></section>`)
		return h.err
	})
}

func formError(h *html, msg string) {
	if msg == "" {
		return
	}
	h.raw(`<p class="error" role="alert">`)
	h.text(msg)
	h.raw(`</p>`)
}
