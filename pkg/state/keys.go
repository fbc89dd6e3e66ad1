// Package state holds the client-side stores for the session, the learning
// list, viewing history, personal reviews and preferences. Each store owns its
// collection in memory and mirrors every change to a persist.Persister.
package state

import "time"

// Persisted keys.
const (
	KeySession    = "@user_session"
	KeyLearning   = "@learning_list"
	KeyHistory    = "@recently_viewed"
	KeyReviews    = "@course_reviews"
	KeyTheme      = "user_theme"
	KeyOnboarding = "@has_seen_onboarding"
)

// MaxHistory caps the recently viewed list.
const MaxHistory = 15

// Clock returns the current time. Stores that stamp records take one so tests
// can pin timestamps.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

func orNow(c Clock) Clock {
	if c == nil {
		return utcNow
	}
	return c
}
