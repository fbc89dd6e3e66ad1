package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"learningpulse/internal/util"
	"learningpulse/pkg/auth"
	"learningpulse/pkg/domain"
	"learningpulse/pkg/state"
	"learningpulse/services/pulse/internal/app"
	"learningpulse/services/pulse/internal/security"
)

const maxBodyBytes = 1 << 20

// Limiter throttles attempts per key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// Alerter records security events per client.
type Alerter interface {
	Observe(ctx context.Context, event, outcome, ip string) (security.AlertResult, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// LoginLimiter throttles login and registration when set.
	LoginLimiter Limiter
	// Alerter is optional.
	Alerter        Alerter
	TrustedProxies *util.TrustedProxies
	AllowedOrigins []string
}

// Server exposes the client state and catalog over HTTP.
type Server struct {
	app     *app.App
	limiter Limiter
	alerter Alerter
	proxies *util.TrustedProxies
	origins []string
	router  *mux.Router
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	s := &Server{
		app:     cfg.App,
		limiter: cfg.LoginLimiter,
		alerter: cfg.Alerter,
		proxies: cfg.TrustedProxies,
		origins: cfg.AllowedOrigins,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("pulse", util.WithSecurityHeaders(util.WithCORS(s.origins, s.router))))
}

func (s *Server) routes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		methodNotAllowed(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// auth
	api.HandleFunc("/auth/login", s.throttled(security.EventLogin, s.handleLogin)).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.throttled(security.EventRegister, s.handleRegister)).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", s.handleSession).Methods(http.MethodGet)
	api.Handle("/auth/logout", s.authenticated(s.handleLogout)).Methods(http.MethodPost)
	api.Handle("/auth/avatar", s.authenticated(s.handleAvatar)).Methods(http.MethodPut)

	// catalog
	api.HandleFunc("/home", s.handleHome).Methods(http.MethodGet)
	api.HandleFunc("/courses", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/courses/trending", s.handleTrending).Methods(http.MethodGet)
	api.Handle("/courses/{key}", s.authenticated(s.handleCourse)).Methods(http.MethodGet)
	api.HandleFunc("/instructors/{id:[0-9]+}", s.handleInstructor).Methods(http.MethodGet)

	// personal state
	api.Handle("/learning", s.authenticated(s.handleLearning)).Methods(http.MethodGet)
	api.Handle("/learning/{key}/toggle", s.authenticated(s.handleToggleLearning)).Methods(http.MethodPost)
	api.Handle("/learning/{key}/advance", s.authenticated(s.handleAdvanceLearning)).Methods(http.MethodPost)
	api.Handle("/history", s.authenticated(s.handleHistory)).Methods(http.MethodGet, http.MethodDelete)
	api.Handle("/reviews", s.authenticated(s.handleReviews)).Methods(http.MethodGet)
	api.Handle("/reviews/{key}", s.authenticated(s.handleReview)).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)
	api.Handle("/recommendations", s.authenticated(s.handleRecommendations)).Methods(http.MethodGet)
	api.Handle("/profile", s.authenticated(s.handleProfile)).Methods(http.MethodGet)

	// device preferences, readable before sign-in
	api.HandleFunc("/preferences/theme", s.handleTheme).Methods(http.MethodGet, http.MethodPut)
	api.HandleFunc("/preferences/theme/toggle", s.handleToggleTheme).Methods(http.MethodPost)
	api.HandleFunc("/preferences/onboarding", s.handleOnboarding).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || !s.app.Authorized(token) {
			s.audit(r, security.EventAuthorize, security.OutcomeFail)
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "unauthorized")
			return
		}
		next(w, r)
	})
}

// audit reports an event to the alerter and logs when a threshold is hit.
func (s *Server) audit(r *http.Request, event, outcome string) {
	if s.alerter == nil {
		return
	}
	ip := util.ClientIP(r, s.proxies)
	logger := util.LoggerFromContext(r.Context())
	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert counter failed", "event", event, "err", err)
		return
	}
	if result.Triggered {
		logger.Warn("security alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

// throttled rejects callers over the login quota, counted per client IP and
// per identifier in the body.
func (s *Server) throttled(event string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next(w, r)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
			return
		}
		var probe struct {
			Email string `json:"email"`
		}
		_ = json.Unmarshal(body, &probe)
		keys := []string{"ip:" + util.ClientIP(r, s.proxies)}
		if id := strings.ToLower(strings.TrimSpace(probe.Email)); id != "" {
			keys = append(keys, "id:"+id)
		}
		for _, key := range keys {
			if ok, retryAfter := s.limiter.Allow(r.Context(), key); !ok {
				secs := int(retryAfter.Round(time.Second) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				s.audit(r, event, security.OutcomeRateLimited)
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many attempts, try again later")
				return
			}
		}
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		next(w, r)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Login(r.Context(), domain.Credentials{Identifier: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.audit(r, security.EventLogin, security.OutcomeFail)
		}
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.Registration
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateRegistration) {
			s.audit(r, security.EventRegister, security.OutcomeFail)
		}
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

type sessionResponse struct {
	Authenticated  bool         `json:"authenticated"`
	User           *domain.User `json:"user,omitempty"`
	Loading        bool         `json:"loading"`
	Authenticating bool         `json:"authenticating"`
	Error          string       `json:"error,omitempty"`
}

// handleSession reports session state. The user is only included for the
// session's own bearer token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	snap := s.app.Session().Snapshot()
	resp := sessionResponse{
		Authenticated:  snap.User != nil,
		Loading:        snap.Loading,
		Authenticating: snap.Authenticating,
		Error:          snap.Error,
	}
	if token, ok := bearerToken(r); ok && s.app.Authorized(token) {
		resp.User = snap.User
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.app.Logout()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Avatar string `json:"avatar"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.UpdateAvatar(req.Avatar)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	home, err := s.app.Home(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, home)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	courses, err := s.app.Search(r.Context(), q.Get("q"), q.Get("subject"), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Course]{Items: courses, Count: len(courses)})
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	courses, err := s.app.Trending(r.Context(), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Course]{Items: courses, Count: len(courses)})
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	details, err := s.app.CourseDetails(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleInstructor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "INSTRUCTOR_NOT_FOUND", app.ErrInstructorNotFound.Error())
		return
	}
	details, err := s.app.Instructor(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type learningResponse struct {
	Items  []domain.LearningItem         `json:"items"`
	Counts map[domain.LearningStatus]int `json:"counts"`
}

func (s *Server) handleLearning(w http.ResponseWriter, r *http.Request) {
	status := domain.LearningStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "unknown status")
		return
	}
	writeJSON(w, http.StatusOK, learningResponse{
		Items:  s.app.Learning().Filter(status),
		Counts: s.app.Learning().Counts(),
	})
}

func (s *Server) handleToggleLearning(w http.ResponseWriter, r *http.Request) {
	res, err := s.app.ToggleLearning(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdvanceLearning(w http.ResponseWriter, r *http.Request) {
	item, err := s.app.AdvanceLearning(mux.Vars(r)["key"])
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodDelete {
		s.app.History().Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
		return
	}
	items := s.app.History().Items()
	writeJSON(w, http.StatusOK, listResponse[domain.Course]{Items: items, Count: len(items)})
}

func (s *Server) handleReviews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Reviews().All())
}

type reviewRequest struct {
	Text   string `json:"text"`
	Rating int    `json:"rating"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	switch r.Method {
	case http.MethodGet:
		review, ok := s.app.Reviews().Get(key)
		if !ok {
			writeError(w, http.StatusNotFound, "REVIEW_NOT_FOUND", "review not found")
			return
		}
		writeJSON(w, http.StatusOK, review)
	case http.MethodPut:
		var req reviewRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		review, err := s.app.SaveReview(r.Context(), key, req.Text, req.Rating)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, review)
	case http.MethodDelete:
		s.app.Reviews().Remove(key)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := s.app.Recommendations(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Profile())
}

type themeBody struct {
	Theme domain.Theme `json:"theme"`
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	prefs := s.app.Preferences()
	if r.Method == http.MethodPut {
		var req themeBody
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := prefs.SetTheme(req.Theme); err != nil {
			writeAppError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, themeBody{Theme: prefs.Theme()})
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, themeBody{Theme: s.app.Preferences().ToggleTheme()})
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	prefs := s.app.Preferences()
	switch r.Method {
	case http.MethodPut:
		prefs.MarkOnboardingSeen()
	case http.MethodDelete:
		prefs.ResetOnboarding()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"seen": prefs.OnboardingSeen()})
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return false
	}
	return true
}

// writeAppError maps domain errors to HTTP responses. Anything unrecognized
// is logged and reported as an internal error.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "SYSTEM_INTERNAL_ERROR"
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "AUTH_INVALID_CREDENTIALS"
	case errors.Is(err, app.ErrNotAuthenticated):
		status, code = http.StatusUnauthorized, "AUTH_INVALID_TOKEN"
	case errors.Is(err, auth.ErrDuplicateRegistration):
		status, code = http.StatusConflict, "AUTH_EMAIL_EXISTS"
	case errors.Is(err, auth.ErrInvalidRegistration),
		errors.Is(err, state.ErrInvalidReview),
		errors.Is(err, state.ErrInvalidTheme),
		errors.Is(err, app.ErrInvalidAvatar):
		status, code = http.StatusBadRequest, "VALIDATION_FAILED"
	case errors.Is(err, app.ErrCourseNotFound):
		status, code = http.StatusNotFound, "COURSE_NOT_FOUND"
	case errors.Is(err, app.ErrInstructorNotFound):
		status, code = http.StatusNotFound, "INSTRUCTOR_NOT_FOUND"
	case errors.Is(err, app.ErrNotInLearningList):
		status, code = http.StatusNotFound, "LEARNING_ITEM_NOT_FOUND"
	case errors.Is(err, auth.ErrNetworkFailure), errors.Is(err, auth.ErrInvalidResponse):
		status, code = http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		msg = "internal error"
	}
	writeError(w, status, code, msg)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
