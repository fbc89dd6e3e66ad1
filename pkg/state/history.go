package state

import (
	"context"
	"slices"
	"sync"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/persist"
)

// HistoryStore is the most-recent-first list of viewed courses, capped at MaxHistory.
type HistoryStore struct {
	p persist.Persister

	mu       sync.Mutex
	courses  []domain.Course
	restored bool
}

func NewHistoryStore(p persist.Persister) *HistoryStore {
	return &HistoryStore{p: p}
}

func (s *HistoryStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	done := s.restored
	s.mu.Unlock()
	if done {
		return nil
	}
	courses := persist.Load[[]domain.Course](ctx, s.p, KeyHistory, nil)
	if len(courses) > MaxHistory {
		courses = courses[:MaxHistory]
	}
	s.mu.Lock()
	if !s.restored {
		s.courses = courses
		s.restored = true
	}
	s.mu.Unlock()
	return ctx.Err()
}

// RecordView moves course to the front, dropping any earlier occurrence and
// anything past MaxHistory.
func (s *HistoryStore) RecordView(course domain.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.Course, 0, min(len(s.courses)+1, MaxHistory))
	next = append(next, course)
	for _, c := range s.courses {
		if len(next) == MaxHistory {
			break
		}
		if c.Key != course.Key {
			next = append(next, c)
		}
	}
	s.courses = next
	s.p.Write(KeyHistory, s.courses)
}

func (s *HistoryStore) Items() []domain.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.courses)
}

// Keys returns the viewed course keys, most recent first.
func (s *HistoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.courses))
	for i, c := range s.courses {
		keys[i] = c.Key
	}
	return keys
}

func (s *HistoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses = nil
	s.p.Delete(KeyHistory)
}
