package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"learningpulse/pkg/auth"
	"learningpulse/pkg/catalog"
	"learningpulse/pkg/domain"
	"learningpulse/pkg/kv"
	"learningpulse/pkg/persist"
	"learningpulse/pkg/state"
)

const (
	HintNoHistory         = "Enroll in courses or view subjects to get personalized recommendations."
	HintNoRecommendations = "No specific recommendations found. Try exploring more subjects!"

	maxAvatarRunes = 16
)

// Config holds runtime configuration for the core application.
type Config struct {
	KV kv.Config
	// Store overrides KV when set. The app closes it on Close.
	Store          kv.Store
	PersistTimeout time.Duration

	DefaultTheme domain.Theme
	TokenSecret  string
	TokenTTL     time.Duration

	// RemoteAuthURL enables fallback login against a DummyJSON-compatible API.
	RemoteAuthURL     string
	RemoteAuthTimeout time.Duration
	// Remote overrides RemoteAuthURL when set.
	Remote auth.Remote

	Rand   *rand.Rand
	Clock  state.Clock
	Logger *slog.Logger
}

// App wires storage, state stores, authentication and the catalog.
type App struct {
	store     kv.Store
	persister *persist.Adapter
	logger    *slog.Logger

	session     *state.SessionStore
	learning    *state.LearningStore
	history     *state.HistoryStore
	reviews     *state.ReviewsStore
	preferences *state.PreferencesStore

	catalog *catalog.Catalog
}

// New builds the app. Call Restore before serving.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenOptions{Secret: cfg.TokenSecret, TTL: cfg.TokenTTL})
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}
	cat, err := catalog.New(cfg.Rand)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	store := cfg.Store
	if store == nil {
		store, err = kv.Open(ctx, cfg.KV)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", cfg.KV.Driver, err)
		}
	}
	p := persist.NewAdapter(store, persist.Options{Timeout: cfg.PersistTimeout, Logger: logger})

	remote := cfg.Remote
	if remote == nil && strings.TrimSpace(cfg.RemoteAuthURL) != "" {
		remote = auth.NewRemoteClient(cfg.RemoteAuthURL, cfg.RemoteAuthTimeout)
	}
	authService := auth.NewService(auth.NewAccounts(p), tokens, remote)

	return &App{
		store:       store,
		persister:   p,
		logger:      logger,
		session:     state.NewSessionStore(authService, p),
		learning:    state.NewLearningStore(p, cfg.Clock),
		history:     state.NewHistoryStore(p),
		reviews:     state.NewReviewsStore(p, cfg.Clock),
		preferences: state.NewPreferencesStore(p, cfg.DefaultTheme),
		catalog:     cat,
	}, nil
}

// Restore loads every store in parallel. A store that cannot be read starts empty.
func (a *App) Restore(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := a.session.Restore(ctx)
		return err
	})
	g.Go(func() error { return a.learning.Restore(ctx) })
	g.Go(func() error { return a.history.Restore(ctx) })
	g.Go(func() error { return a.reviews.Restore(ctx) })
	g.Go(func() error { return a.preferences.Restore(ctx) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	a.logger.Debug("state restored",
		"learning", len(a.learning.Items()),
		"history", len(a.history.Items()),
		"reviews", len(a.reviews.All()),
	)
	return nil
}

// Flush waits for queued writes to reach the store.
func (a *App) Flush(ctx context.Context) error {
	return a.persister.Flush(ctx)
}

// Close drains pending writes and closes the store.
func (a *App) Close(ctx context.Context) error {
	flushErr := a.persister.Close(ctx)
	closeErr := a.store.Close()
	return errors.Join(flushErr, closeErr)
}

// Store returns the backing key-value store.
func (a *App) Store() kv.Store { return a.store }

func (a *App) Session() *state.SessionStore         { return a.session }
func (a *App) Learning() *state.LearningStore       { return a.learning }
func (a *App) History() *state.HistoryStore         { return a.history }
func (a *App) Reviews() *state.ReviewsStore         { return a.reviews }
func (a *App) Preferences() *state.PreferencesStore { return a.preferences }
func (a *App) Catalog() *catalog.Catalog            { return a.catalog }

// Authorized reports whether token belongs to the current session.
func (a *App) Authorized(token string) bool {
	user, ok := a.session.User()
	if !ok || token == "" || user.Token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) == 1
}

func (a *App) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	user, err := a.session.Login(ctx, creds)
	if err != nil {
		a.logger.Info("login failed", "identifier", creds.Identifier, "err", err)
		return domain.User{}, err
	}
	a.logger.Info("login succeeded", "user_id", user.ID)
	return user, nil
}

func (a *App) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	user, err := a.session.Register(ctx, reg)
	if err != nil {
		return domain.User{}, err
	}
	a.logger.Info("account registered", "user_id", user.ID)
	return user, nil
}

func (a *App) Logout() {
	a.session.Logout()
}

// UpdateAvatar sets the signed-in user's avatar symbol.
func (a *App) UpdateAvatar(symbol string) (domain.User, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || utf8.RuneCountInString(symbol) > maxAvatarRunes {
		return domain.User{}, ErrInvalidAvatar
	}
	user, ok := a.session.UpdateAvatar(symbol)
	if !ok {
		return domain.User{}, ErrNotAuthenticated
	}
	return user, nil
}

// Home is the landing screen payload.
type Home struct {
	Subjects []string        `json:"subjects"`
	Trending []domain.Course `json:"trending"`
	Discover []domain.Course `json:"discover"`
}

func (a *App) Home(ctx context.Context) (Home, error) {
	trending, err := a.catalog.Trending(ctx, 0)
	if err != nil {
		return Home{}, err
	}
	discover, err := a.catalog.Search(ctx, "", "", 0)
	if err != nil {
		return Home{}, err
	}
	return Home{Subjects: a.catalog.Subjects(), Trending: trending, Discover: discover}, nil
}

func (a *App) Search(ctx context.Context, query, subject string, limit int) ([]domain.Course, error) {
	return a.catalog.Search(ctx, query, subject, limit)
}

func (a *App) Trending(ctx context.Context, limit int) ([]domain.Course, error) {
	return a.catalog.Trending(ctx, limit)
}

// CourseDetails is everything shown on a course page.
type CourseDetails struct {
	Course           domain.Course            `json:"course"`
	PreviewVideoID   string                   `json:"previewVideoId"`
	Instructors      []domain.Instructor      `json:"instructors"`
	CommunityReviews []domain.CommunityReview `json:"communityReviews"`
	MyReview         *domain.Review           `json:"myReview,omitempty"`
	Learning         *domain.LearningItem     `json:"learning,omitempty"`
}

// CourseDetails loads a course and records the view in history.
func (a *App) CourseDetails(ctx context.Context, key string) (CourseDetails, error) {
	course, err := a.course(ctx, key)
	if err != nil {
		return CourseDetails{}, err
	}
	instructors, err := a.catalog.CourseInstructors(ctx, key)
	if err != nil {
		return CourseDetails{}, err
	}
	reviews, err := a.catalog.CommunityReviews(ctx, key, 0)
	if err != nil {
		return CourseDetails{}, err
	}
	a.history.RecordView(course)

	details := CourseDetails{
		Course:           course,
		PreviewVideoID:   a.catalog.Preview(key),
		Instructors:      instructors,
		CommunityReviews: reviews,
	}
	if review, ok := a.reviews.Get(key); ok {
		details.MyReview = &review
	}
	if item, ok := a.learning.Item(key); ok {
		details.Learning = &item
	}
	return details, nil
}

// InstructorDetails is an instructor with their courses.
type InstructorDetails struct {
	Instructor domain.Instructor `json:"instructor"`
	Courses    []domain.Course   `json:"courses"`
}

func (a *App) Instructor(ctx context.Context, id int) (InstructorDetails, error) {
	in, err := a.catalog.Instructor(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return InstructorDetails{}, ErrInstructorNotFound
	}
	if err != nil {
		return InstructorDetails{}, err
	}
	courses, err := a.catalog.InstructorCourses(ctx, id)
	if err != nil {
		return InstructorDetails{}, err
	}
	return InstructorDetails{Instructor: in, Courses: courses}, nil
}

// LearningToggle is the result of saving or unsaving a course.
type LearningToggle struct {
	Saved bool                 `json:"saved"`
	Item  *domain.LearningItem `json:"item,omitempty"`
}

// ToggleLearning saves or removes a catalog course from the learning list.
func (a *App) ToggleLearning(ctx context.Context, key string) (LearningToggle, error) {
	if !a.learning.Contains(key) {
		course, err := a.course(ctx, key)
		if err != nil {
			return LearningToggle{}, err
		}
		a.learning.Toggle(course)
		item, _ := a.learning.Item(key)
		return LearningToggle{Saved: true, Item: &item}, nil
	}
	// Removal does not need the catalog; saved items carry their course.
	item, _ := a.learning.Item(key)
	a.learning.Toggle(item.Course)
	return LearningToggle{Saved: false}, nil
}

func (a *App) AdvanceLearning(key string) (domain.LearningItem, error) {
	item, ok := a.learning.AdvanceStatus(key)
	if !ok {
		return domain.LearningItem{}, ErrNotInLearningList
	}
	return item, nil
}

// SaveReview stores the user's review of a catalog course.
func (a *App) SaveReview(ctx context.Context, key, text string, rating int) (domain.Review, error) {
	if _, err := a.course(ctx, key); err != nil {
		return domain.Review{}, err
	}
	return a.reviews.Upsert(key, strings.TrimSpace(text), rating)
}

// Recommendations is the recommendation screen payload. Hint is set when
// there is nothing to show.
type Recommendations struct {
	Courses []domain.Course `json:"courses"`
	Hint    string          `json:"hint,omitempty"`
}

// Recommendations samples courses the user has neither saved nor viewed.
func (a *App) Recommendations(ctx context.Context) (Recommendations, error) {
	seen := unionKeys(a.learning.Keys(), a.history.Keys())
	if len(seen) == 0 {
		return Recommendations{Courses: []domain.Course{}, Hint: HintNoHistory}, nil
	}
	courses, err := a.catalog.Recommendations(ctx, seen, seen, 0)
	if err != nil {
		return Recommendations{}, err
	}
	out := Recommendations{Courses: courses}
	if len(courses) == 0 {
		out.Hint = HintNoRecommendations
	}
	return out, nil
}

// Profile is the profile screen payload.
type Profile struct {
	User           *domain.User                  `json:"user"`
	LearningCounts map[domain.LearningStatus]int `json:"learningCounts"`
	HistoryCount   int                           `json:"historyCount"`
	ReviewCount    int                           `json:"reviewCount"`
	Theme          domain.Theme                  `json:"theme"`
}

func (a *App) Profile() Profile {
	return Profile{
		User:           a.session.Snapshot().User,
		LearningCounts: a.learning.Counts(),
		HistoryCount:   len(a.history.Items()),
		ReviewCount:    len(a.reviews.All()),
		Theme:          a.preferences.Theme(),
	}
}

func (a *App) course(ctx context.Context, key string) (domain.Course, error) {
	course, err := a.catalog.Course(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return domain.Course{}, ErrCourseNotFound
	}
	return course, err
}

func unionKeys(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, key := range list {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, key)
		}
	}
	return out
}
