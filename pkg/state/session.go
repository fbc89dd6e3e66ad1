package state

import (
	"context"
	"sync"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/persist"
)

// Authenticator verifies credentials and creates accounts.
type Authenticator interface {
	Login(ctx context.Context, creds domain.Credentials) (domain.User, error)
	Register(ctx context.Context, reg domain.Registration) (domain.User, error)
}

// Session is a point-in-time view of the session store.
type Session struct {
	User           *domain.User `json:"user"`
	Loading        bool         `json:"loading"`
	Authenticating bool         `json:"authenticating"`
	Error          string       `json:"error,omitempty"`
}

// SessionStore tracks the authenticated user. It starts uninitialized and
// becomes authenticated or anonymous after Restore.
type SessionStore struct {
	auth Authenticator
	p    persist.Persister

	mu       sync.Mutex
	user     *domain.User
	restored bool
	busy     int
	lastErr  string
}

func NewSessionStore(auth Authenticator, p persist.Persister) *SessionStore {
	return &SessionStore{auth: auth, p: p}
}

// Restore loads the persisted session once. Later calls return the current state.
func (s *SessionStore) Restore(ctx context.Context) (Session, error) {
	s.mu.Lock()
	done := s.restored
	s.mu.Unlock()
	if done {
		return s.Snapshot(), nil
	}

	user := persist.Load[*domain.User](ctx, s.p, KeySession, nil)

	s.mu.Lock()
	if !s.restored {
		s.user = user
		s.restored = true
	}
	s.mu.Unlock()
	return s.Snapshot(), ctx.Err()
}

func (s *SessionStore) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	return s.authenticate(func() (domain.User, error) { return s.auth.Login(ctx, creds) })
}

func (s *SessionStore) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	return s.authenticate(func() (domain.User, error) { return s.auth.Register(ctx, reg) })
}

// authenticate runs call with the busy flag raised. Overlapping calls are not
// serialized; whichever finishes last owns the session.
func (s *SessionStore) authenticate(call func() (domain.User, error)) (domain.User, error) {
	s.mu.Lock()
	s.busy++
	s.lastErr = ""
	s.mu.Unlock()

	user, err := call()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy--
	if err != nil {
		s.lastErr = err.Error()
		return domain.User{}, err
	}
	s.user = &user
	s.restored = true
	s.p.Write(KeySession, user)
	return user, nil
}

// Logout clears the user in memory and removes the persisted session.
func (s *SessionStore) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.lastErr = ""
	s.p.Delete(KeySession)
}

// UpdateAvatar sets the avatar symbol. It reports false when nobody is signed in.
func (s *SessionStore) UpdateAvatar(symbol string) (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.User{}, false
	}
	updated := *s.user
	updated.Avatar = symbol
	s.user = &updated
	s.p.Write(KeySession, updated)
	return updated, true
}

func (s *SessionStore) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// User returns the signed-in user.
func (s *SessionStore) User() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return *s.user, true
}

func (s *SessionStore) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Session{
		Loading:        !s.restored,
		Authenticating: s.busy > 0,
		Error:          s.lastErr,
	}
	if s.user != nil {
		u := *s.user
		out.User = &u
	}
	return out
}
