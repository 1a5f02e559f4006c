package handler

import (
	"net/http"

	"github.com/msomdec/merchtrax/internal/alarm"
	"github.com/msomdec/merchtrax/internal/service"
)

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Auth         *service.AuthService
	Visits       *service.VisitService
	Timer        *service.TimerHost
	Alarms       *alarm.Hub
	LoginLimiter *service.TokenBucket
	DB           Pinger
	CookieSecure bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, d Deps) {
	authH := NewAuthHandler(d.Auth, d.CookieSecure)
	visitH := NewVisitHandler(d.Visits)
	timerH := NewTimerHandler(d.Timer, d.Alarms)

	api := func(h http.HandlerFunc) http.Handler { return RequireAuth(d.Auth, h) }
	page := func(h http.HandlerFunc) http.Handler { return RequirePage(d.Auth, h) }
	limited := func(h http.HandlerFunc) http.Handler {
		if d.LoginLimiter == nil {
			return h
		}
		return RateLimit(d.LoginLimiter, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(d.DB))

	// Auth API
	mux.Handle("POST /api/auth/login", limited(authH.HandleLogin))
	mux.Handle("POST /api/auth/register", limited(authH.HandleRegister))
	mux.HandleFunc("POST /api/auth/logout", authH.HandleLogout)
	mux.Handle("GET /api/auth/me", api(authH.HandleMe))

	// Visits API
	mux.Handle("GET /api/visits", api(visitH.HandleListUpcoming))
	mux.Handle("GET /api/visits/history", api(visitH.HandleListHistory))
	mux.Handle("POST /api/visits", api(visitH.HandleCreate))
	mux.Handle("GET /api/visits/{id}", api(visitH.HandleGet))
	mux.Handle("PUT /api/visits/{id}", api(visitH.HandleUpdate))
	mux.Handle("DELETE /api/visits/{id}", api(visitH.HandleDelete))
	mux.Handle("POST /api/visits/{id}/complete", api(visitH.HandleComplete))

	// Timer API
	mux.Handle("POST /api/visits/{id}/timer", api(timerH.HandleOpen))
	mux.Handle("GET /api/timer", api(timerH.HandleStatus))
	mux.Handle("POST /api/timer/restart", api(timerH.HandleRestart))
	mux.Handle("POST /api/timer/toggle", api(timerH.HandleToggle))
	mux.Handle("POST /api/timer/end", api(timerH.HandleEnd))
	mux.Handle("POST /api/timer/prompt", api(timerH.HandlePrompt))
	mux.Handle("POST /api/timer/background", api(timerH.HandleBackground))
	mux.Handle("POST /api/timer/foreground", api(timerH.HandleForeground))

	// Pages
	mux.Handle("GET /login", OptionalAuth(d.Auth, http.HandlerFunc(authH.HandleLoginPage)))
	mux.Handle("POST /login", limited(authH.HandleLoginForm))
	mux.HandleFunc("GET /register", authH.HandleRegisterPage)
	mux.Handle("POST /register", limited(authH.HandleRegisterForm))
	mux.HandleFunc("POST /logout", authH.HandleLogoutAction)

	mux.Handle("GET /visits", page(visitH.HandleVisitsPage))
	mux.Handle("POST /visits", page(visitH.HandleCreateForm))
	mux.Handle("GET /history", page(visitH.HandleHistoryPage))
	mux.Handle("POST /visits/{id}/timer", page(timerH.HandleOpenForm))

	mux.Handle("GET /timer", page(timerH.HandleTimerPage))
	mux.Handle("GET /timer/stream", api(timerH.HandleStream))
	mux.Handle("POST /timer/restart", api(timerH.HandleRestartAction))
	mux.Handle("POST /timer/toggle", api(timerH.HandleToggleAction))
	mux.Handle("POST /timer/end", api(timerH.HandleEndAction))
	mux.Handle("POST /timer/prompt/yes", api(timerH.HandlePromptYes))
	mux.Handle("POST /timer/prompt/no", api(timerH.HandlePromptNo))
	mux.Handle("POST /timer/background", api(timerH.HandleBackgroundAction))
	mux.Handle("POST /timer/foreground", api(timerH.HandleForegroundAction))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/visits", http.StatusSeeOther)
	})
}
