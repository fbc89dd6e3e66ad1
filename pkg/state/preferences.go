package state

import (
	"context"
	"fmt"
	"sync"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/persist"
)

// PreferencesStore keeps the display theme and the onboarding flag.
type PreferencesStore struct {
	p            persist.Persister
	defaultTheme domain.Theme

	mu        sync.Mutex
	theme     domain.Theme
	onboarded bool
	restored  bool
}

// NewPreferencesStore uses defaultTheme until a theme is stored. An invalid
// default falls back to dark.
func NewPreferencesStore(p persist.Persister, defaultTheme domain.Theme) *PreferencesStore {
	if !validTheme(defaultTheme) {
		defaultTheme = domain.ThemeDark
	}
	return &PreferencesStore{p: p, defaultTheme: defaultTheme}
}

func (s *PreferencesStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	done := s.restored
	s.mu.Unlock()
	if done {
		return nil
	}
	theme := persist.Load[domain.Theme](ctx, s.p, KeyTheme, "")
	if !validTheme(theme) {
		theme = ""
	}
	onboarded := persist.Load(ctx, s.p, KeyOnboarding, false)

	s.mu.Lock()
	if !s.restored {
		s.theme = theme
		s.onboarded = onboarded
		s.restored = true
	}
	s.mu.Unlock()
	return ctx.Err()
}

func (s *PreferencesStore) Theme() domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.themeLocked()
}

func (s *PreferencesStore) SetTheme(theme domain.Theme) error {
	if !validTheme(theme) {
		return fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
	s.p.Write(KeyTheme, theme)
	return nil
}

// ToggleTheme flips between dark and light and returns the new theme.
func (s *PreferencesStore) ToggleTheme() domain.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := domain.ThemeDark
	if s.themeLocked() == domain.ThemeDark {
		next = domain.ThemeLight
	}
	s.theme = next
	s.p.Write(KeyTheme, next)
	return next
}

func (s *PreferencesStore) OnboardingSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onboarded
}

func (s *PreferencesStore) MarkOnboardingSeen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded = true
	s.p.Write(KeyOnboarding, true)
}

func (s *PreferencesStore) ResetOnboarding() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onboarded = false
	s.p.Delete(KeyOnboarding)
}

func (s *PreferencesStore) themeLocked() domain.Theme {
	if s.theme == "" {
		return s.defaultTheme
	}
	return s.theme
}

func validTheme(t domain.Theme) bool {
	return t == domain.ThemeDark || t == domain.ThemeLight
}
