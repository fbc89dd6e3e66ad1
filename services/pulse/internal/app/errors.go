package app

import "errors"

var (
	ErrCourseNotFound     = errors.New("course not found")
	ErrInstructorNotFound = errors.New("instructor not found")
	ErrNotInLearningList  = errors.New("course is not in the learning list")
	// ErrNotAuthenticated is returned by session mutations while nobody is signed in.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidAvatar    = errors.New("invalid avatar")
)
