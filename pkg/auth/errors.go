package auth

import "errors"

var (
	ErrInvalidCredentials    = errors.New("invalid email/username or password")
	ErrDuplicateRegistration = errors.New("email already exists")
	ErrNetworkFailure        = errors.New("network failure")
	ErrInvalidResponse       = errors.New("invalid response from server")
	ErrInvalidRegistration   = errors.New("invalid registration")
	ErrPasswordTooShort      = errors.New("password must be at least 6 characters")
	ErrInvalidToken          = errors.New("invalid token")
)
