package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/msomdec/merchtrax/internal/alarm"
	"github.com/msomdec/merchtrax/internal/handler"
	"github.com/msomdec/merchtrax/internal/repository/sqlite"
	"github.com/msomdec/merchtrax/internal/service"
	"github.com/msomdec/merchtrax/internal/timer"
	"github.com/msomdec/merchtrax/internal/timer/timertest"
)

const testJWTSecret = "test-secret-for-handler-tests-0123456789"

var epoch = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db     *sqlite.DB
	clock  *timertest.ManualClock
	auth   *service.AuthService
	visits *service.VisitService
	host   *service.TimerHost
	hub    *alarm.Hub
	srv    *httptest.Server
}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	return service.NewAuthService(sqlite.NewUserRepository(newTestDB(t)), testJWTSecret, 4)
}

// newTestEnv wires the full stack on a temporary database with a manual
// clock driving the timer and its alarms.
func newTestEnv(t *testing.T, limiter *service.TokenBucket) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := timertest.NewManualClock(epoch)
	hub := alarm.NewHub()
	sched := alarm.NewScheduler(sqlite.NewAlarmRepository(db), hub, clock)
	t.Cleanup(sched.Close)

	engine := timer.New(sqlite.NewTimerStore(db), alarm.Burst(sched, 3, time.Second, 0), timer.WithClock(clock))
	visits := service.NewVisitService(sqlite.NewVisitRepository(db))
	env := &testEnv{
		db:     db,
		clock:  clock,
		auth:   service.NewAuthService(sqlite.NewUserRepository(db), testJWTSecret, 4),
		visits: visits,
		host:   service.NewTimerHost(engine, visits),
		hub:    hub,
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Auth:         env.auth,
		Visits:       env.visits,
		Timer:        env.host,
		Alarms:       hub,
		LoginLimiter: limiter,
		DB:           db,
	})
	env.srv = httptest.NewServer(handler.SecurityHeaders(mux))
	t.Cleanup(env.srv.Close)
	return env
}

// client returns a cookie-keeping client that does not follow redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("create cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// signIn registers and logs in a user over the JSON API.
func (e *testEnv) signIn(t *testing.T, email string) *http.Client {
	t.Helper()
	c := e.client(t)
	resp := e.postJSON(t, c, "/api/auth/register", map[string]any{
		"email":           email,
		"displayName":     "Merch " + email,
		"password":        "password123",
		"confirmPassword": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", email, resp.StatusCode)
	}
	resp = e.postJSON(t, c, "/api/auth/login", map[string]any{
		"email":    email,
		"password": "password123",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
	return c
}

func (e *testEnv) postJSON(t *testing.T, c *http.Client, path string, body any) *http.Response {
	t.Helper()
	return e.doJSON(t, c, http.MethodPost, path, body)
}

func (e *testEnv) doJSON(t *testing.T, c *http.Client, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, c *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := c.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// createVisit schedules a visit over the API and returns its id.
func (e *testEnv) createVisit(t *testing.T, c *http.Client, store string, minutes int) string {
	t.Helper()
	resp := e.postJSON(t, c, "/api/visits", map[string]any{
		"storeName":       store,
		"location":        "123 Main St",
		"taskTitle":       "Restock",
		"startTime":       "09:00",
		"allottedMinutes": minutes,
		"date":            "2025-06-02",
	})
	var body struct {
		Visit struct {
			ID string `json:"id"`
		} `json:"visit"`
	}
	decode(t, resp, http.StatusCreated, &body)
	return body.Visit.ID
}

func decode(t *testing.T, resp *http.Response, wantStatus int, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", resp.Request.Method, resp.Request.URL.Path, wantStatus, resp.StatusCode)
	}
	if dst == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
