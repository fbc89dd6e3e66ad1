package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"learningpulse/internal/ratelimit"
	"learningpulse/pkg/domain"
	"learningpulse/pkg/kv"
	"learningpulse/services/pulse/internal/app"
	"learningpulse/services/pulse/internal/security"
)

type recordingAlerter struct {
	events []string
}

func (a *recordingAlerter) Observe(_ context.Context, event, outcome, ip string) (security.AlertResult, error) {
	a.events = append(a.events, event+"|"+outcome+"|"+ip)
	return security.AlertResult{Triggered: true, Count: 1, Threshold: 1}, nil
}

func newTestServer(t *testing.T, limiter Limiter) http.Handler {
	t.Helper()
	return newTestServerWithAlerter(t, limiter, nil)
}

func newTestServerWithAlerter(t *testing.T, limiter Limiter, alerter Alerter) http.Handler {
	t.Helper()
	a, err := app.New(context.Background(), app.Config{
		Store:        kv.NewMemoryStore(),
		DefaultTheme: domain.ThemeDark,
		TokenSecret:  "test-secret",
		Rand:         rand.New(rand.NewPCG(1, 2)),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})
	cfg := Config{App: a, LoginLimiter: limiter}
	if alerter != nil {
		cfg.Alerter = alerter
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Router()
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func register(t *testing.T, h http.Handler) domain.User {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/auth/register", "", domain.Registration{
		Name: "Ann", Email: "ann@example.com", Password: "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}
	user := decode[domain.User](t, rec)
	if user.Token == "" {
		t.Fatalf("expected token in register response")
	}
	return user
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected security headers, got %q", got)
	}
}

func TestPersonalRoutesRequireSessionToken(t *testing.T) {
	h := newTestServer(t, nil)
	for _, path := range []string{"/api/learning", "/api/history", "/api/profile", "/api/recommendations"} {
		rec := do(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
		if resp := decode[errorResponse](t, rec); resp.Code != "AUTH_INVALID_TOKEN" || resp.RequestID == "" {
			t.Fatalf("%s: unexpected error body %+v", path, resp)
		}
	}

	user := register(t, h)
	if rec := do(t, h, http.MethodGet, "/api/learning", "other-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token should be rejected, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/learning", user.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("session token should be accepted, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/api/auth/logout", user.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/learning", user.Token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token should be rejected after logout, got %d", rec.Code)
	}
}

func TestSessionHidesUserWithoutToken(t *testing.T) {
	h := newTestServer(t, nil)
	user := register(t, h)

	anon := decode[sessionResponse](t, do(t, h, http.MethodGet, "/api/auth/session", "", nil))
	if !anon.Authenticated || anon.User != nil {
		t.Fatalf("anonymous session view should not expose user: %+v", anon)
	}
	own := decode[sessionResponse](t, do(t, h, http.MethodGet, "/api/auth/session", user.Token, nil))
	if own.User == nil || own.User.Email != "ann@example.com" {
		t.Fatalf("owner should see user: %+v", own)
	}
}

func TestLoginErrors(t *testing.T) {
	h := newTestServer(t, nil)
	register(t, h)

	rec := do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "wrong-pass"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if resp := decode[errorResponse](t, rec); resp.Code != "AUTH_INVALID_CREDENTIALS" {
		t.Fatalf("unexpected code %q", resp.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/register", "", domain.Registration{Name: "Ann", Email: "ANN@example.com", Password: "secret1"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	bad := httptest.NewRecorder()
	h.ServeHTTP(bad, req)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", bad.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "secret1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLoginThrottled(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(mr.Addr(), "", "test:login", 2, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	h := newTestServer(t, limiter)
	creds := map[string]string{"email": "nobody@example.com", "password": "whatever"}
	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodPost, "/api/auth/login", "", creds); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}
	rec := do(t, h, http.MethodPost, "/api/auth/login", "", creds)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestLearningFlow(t *testing.T) {
	h := newTestServer(t, nil)
	token := register(t, h).Token

	rec := do(t, h, http.MethodPost, "/api/learning/1/toggle", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status %d: %s", rec.Code, rec.Body.String())
	}
	if res := decode[app.LearningToggle](t, rec); !res.Saved {
		t.Fatalf("first toggle should save")
	}

	rec = do(t, h, http.MethodPost, "/api/learning/1/advance", token, nil)
	if item := decode[domain.LearningItem](t, rec); item.Status != domain.StatusInProgress {
		t.Fatalf("expected in progress, got %q", item.Status)
	}

	list := decode[learningResponse](t, do(t, h, http.MethodGet, "/api/learning?status=In+Progress", token, nil))
	if len(list.Items) != 1 || list.Counts[domain.StatusInProgress] != 1 || list.Counts[domain.StatusSaved] != 0 {
		t.Fatalf("unexpected learning list %+v", list)
	}

	if rec := do(t, h, http.MethodGet, "/api/learning?status=Dropped", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status should be rejected, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/learning/2/advance", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("advancing unsaved course should 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/learning/999/toggle", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown course should 404, got %d", rec.Code)
	}
}

func TestCourseDetailsRecordHistory(t *testing.T) {
	h := newTestServer(t, nil)
	token := register(t, h).Token

	rec := do(t, h, http.MethodGet, "/api/courses/1", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("details status %d", rec.Code)
	}
	if details := decode[app.CourseDetails](t, rec); details.PreviewVideoID != "zOtQUlxhHww" {
		t.Fatalf("unexpected preview %q", details.PreviewVideoID)
	}

	history := decode[listResponse[domain.Course]](t, do(t, h, http.MethodGet, "/api/history", token, nil))
	if history.Count != 1 || history.Items[0].Key != "1" {
		t.Fatalf("unexpected history %+v", history)
	}
	do(t, h, http.MethodDelete, "/api/history", token, nil)
	history = decode[listResponse[domain.Course]](t, do(t, h, http.MethodGet, "/api/history", token, nil))
	if history.Count != 0 {
		t.Fatalf("history should be cleared, got %d", history.Count)
	}
}

func TestReviewsRoutes(t *testing.T) {
	h := newTestServer(t, nil)
	token := register(t, h).Token

	if rec := do(t, h, http.MethodPut, "/api/reviews/4", token, reviewRequest{Text: "good", Rating: 9}); rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range rating should 400, got %d", rec.Code)
	}
	rec := do(t, h, http.MethodPut, "/api/reviews/4", token, reviewRequest{Text: "good", Rating: 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("save review status %d: %s", rec.Code, rec.Body.String())
	}
	got := decode[domain.Review](t, do(t, h, http.MethodGet, "/api/reviews/4", token, nil))
	if got.Text != "good" || got.Rating != 4 {
		t.Fatalf("unexpected review %+v", got)
	}
	do(t, h, http.MethodDelete, "/api/reviews/4", token, nil)
	if rec := do(t, h, http.MethodGet, "/api/reviews/4", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("removed review should 404, got %d", rec.Code)
	}
}

func TestPreferencesRoutes(t *testing.T) {
	h := newTestServer(t, nil)

	theme := decode[themeBody](t, do(t, h, http.MethodGet, "/api/preferences/theme", "", nil))
	if theme.Theme != domain.ThemeDark {
		t.Fatalf("expected dark default, got %q", theme.Theme)
	}
	if rec := do(t, h, http.MethodPut, "/api/preferences/theme", "", themeBody{Theme: "sepia"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid theme should 400, got %d", rec.Code)
	}
	theme = decode[themeBody](t, do(t, h, http.MethodPost, "/api/preferences/theme/toggle", "", nil))
	if theme.Theme != domain.ThemeLight {
		t.Fatalf("toggle should switch to light, got %q", theme.Theme)
	}

	seen := decode[map[string]bool](t, do(t, h, http.MethodPut, "/api/preferences/onboarding", "", nil))
	if !seen["seen"] {
		t.Fatalf("onboarding should be marked seen")
	}
	seen = decode[map[string]bool](t, do(t, h, http.MethodDelete, "/api/preferences/onboarding", "", nil))
	if seen["seen"] {
		t.Fatalf("onboarding should be reset")
	}
}

func TestCatalogRoutes(t *testing.T) {
	h := newTestServer(t, nil)

	res := decode[listResponse[domain.Course]](t, do(t, h, http.MethodGet, "/api/courses?q=python", "", nil))
	if res.Count != 2 {
		t.Fatalf("expected 2 python courses, got %d", res.Count)
	}
	if rec := do(t, h, http.MethodGet, "/api/courses?limit=-1", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative limit should 400, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/instructors/1", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("instructor status %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/instructors/404", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown instructor should 404, got %d", rec.Code)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newTestServer(t, nil)
	rec := do(t, h, http.MethodGet, "/api/nope", "", nil)
	if rec.Code != http.StatusNotFound || decode[errorResponse](t, rec).Code != "NOT_FOUND" {
		t.Fatalf("unexpected not found response %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodDelete, "/healthz", "", nil)
	if rec.Code != http.StatusMethodNotAllowed || decode[errorResponse](t, rec).Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("unexpected method response %d %s", rec.Code, rec.Body.String())
	}
}

func TestSecurityEventsReachAlerter(t *testing.T) {
	alerter := &recordingAlerter{}
	h := newTestServerWithAlerter(t, nil, alerter)

	do(t, h, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ann@example.com", "password": "nope-nope"})
	do(t, h, http.MethodGet, "/api/profile", "stale", nil)
	register(t, h)
	do(t, h, http.MethodPost, "/api/auth/register", "", domain.Registration{Name: "Ann", Email: "ann@example.com", Password: "secret1"})

	want := []string{
		"auth.login|fail|192.0.2.10",
		"auth.authorize|fail|192.0.2.10",
		"auth.register|fail|192.0.2.10",
	}
	if diff := cmp.Diff(want, alerter.events); diff != "" {
		t.Fatalf("alert events mismatch (-want +got):\n%s", diff)
	}
}
