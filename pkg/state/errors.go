package state

import "errors"

var (
	ErrInvalidReview = errors.New("invalid review")
	ErrInvalidTheme  = errors.New("invalid theme")
)
