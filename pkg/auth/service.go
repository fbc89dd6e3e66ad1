package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"learningpulse/pkg/domain"
)

// Remote authenticates users that are not registered locally.
type Remote interface {
	Login(ctx context.Context, username, password string) (domain.User, error)
}

// Service resolves logins against local accounts first and then the remote
// provider. It satisfies the session store's Authenticator.
type Service struct {
	accounts *Accounts
	tokens   *TokenIssuer
	remote   Remote
}

// NewService builds the service. remote may be nil.
func NewService(accounts *Accounts, tokens *TokenIssuer, remote Remote) *Service {
	return &Service{accounts: accounts, tokens: tokens, remote: remote}
}

func (s *Service) Login(ctx context.Context, creds domain.Credentials) (domain.User, error) {
	identifier := strings.TrimSpace(creds.Identifier)
	if identifier == "" || creds.Password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	rec, found, err := s.accounts.Authenticate(ctx, identifier, creds.Password)
	if !found && err != nil {
		return domain.User{}, err
	}
	if found {
		if err != nil {
			return domain.User{}, err
		}
		return s.localUser(rec)
	}

	if s.remote == nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.remote.Login(ctx, identifier, creds.Password)
	if err != nil {
		slog.Warn("remote login failed", "identifier", identifier, "err", err)
		return domain.User{}, err
	}
	return user, nil
}

func (s *Service) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	rec, err := s.accounts.Register(ctx, reg)
	if err != nil {
		return domain.User{}, err
	}
	return s.localUser(rec)
}

func (s *Service) localUser(rec Record) (domain.User, error) {
	token, err := s.tokens.Issue(rec.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("issue token: %w", err)
	}
	return rec.User(token), nil
}
