package state

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/persist"
)

const maxRating = 5

// ReviewsStore holds at most one personal review per course key.
type ReviewsStore struct {
	p   persist.Persister
	now Clock

	mu       sync.Mutex
	reviews  map[string]domain.Review
	restored bool
}

func NewReviewsStore(p persist.Persister, now Clock) *ReviewsStore {
	return &ReviewsStore{p: p, now: orNow(now), reviews: map[string]domain.Review{}}
}

func (s *ReviewsStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	done := s.restored
	s.mu.Unlock()
	if done {
		return nil
	}
	reviews := persist.Load(ctx, s.p, KeyReviews, map[string]domain.Review{})
	if reviews == nil {
		reviews = map[string]domain.Review{}
	}
	s.mu.Lock()
	if !s.restored {
		s.reviews = reviews
		s.restored = true
	}
	s.mu.Unlock()
	return ctx.Err()
}

// Upsert replaces the review for key.
func (s *ReviewsStore) Upsert(key, text string, rating int) (domain.Review, error) {
	if strings.TrimSpace(key) == "" {
		return domain.Review{}, fmt.Errorf("%w: course key required", ErrInvalidReview)
	}
	if rating < 0 || rating > maxRating {
		return domain.Review{}, fmt.Errorf("%w: rating must be between 0 and %d", ErrInvalidReview, maxRating)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	review := domain.Review{Text: text, Rating: rating, UpdatedAt: s.now()}
	next := maps.Clone(s.reviews)
	next[key] = review
	s.reviews = next
	s.p.Write(KeyReviews, s.reviews)
	return review, nil
}

// Remove deletes the review for key. The mapping is persisted either way.
func (s *ReviewsStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[key]; ok {
		next := maps.Clone(s.reviews)
		delete(next, key)
		s.reviews = next
	}
	s.p.Write(KeyReviews, s.reviews)
}

func (s *ReviewsStore) Get(key string) (domain.Review, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[key]
	return r, ok
}

func (s *ReviewsStore) All() map[string]domain.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.reviews)
}
