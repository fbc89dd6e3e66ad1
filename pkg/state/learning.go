package state

import (
	"context"
	"slices"
	"sync"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/persist"
)

// LearningStore is the ordered list of courses the user saved, each with a
// progress status.
type LearningStore struct {
	p   persist.Persister
	now Clock

	mu       sync.Mutex
	items    []domain.LearningItem
	restored bool
}

func NewLearningStore(p persist.Persister, now Clock) *LearningStore {
	return &LearningStore{p: p, now: orNow(now)}
}

func (s *LearningStore) Restore(ctx context.Context) error {
	s.mu.Lock()
	done := s.restored
	s.mu.Unlock()
	if done {
		return nil
	}
	items := persist.Load[[]domain.LearningItem](ctx, s.p, KeyLearning, nil)
	s.mu.Lock()
	if !s.restored {
		s.items = items
		s.restored = true
	}
	s.mu.Unlock()
	return ctx.Err()
}

// Toggle removes course if it is saved, otherwise appends it as Saved. It
// reports whether the course is saved afterwards.
func (s *LearningStore) Toggle(course domain.Course) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(course.Key); i >= 0 {
		s.items = slices.Delete(slices.Clone(s.items), i, i+1)
		s.p.Write(KeyLearning, s.items)
		return false
	}
	s.items = append(slices.Clip(s.items), domain.LearningItem{
		Course:  course,
		Status:  domain.StatusSaved,
		AddedAt: s.now(),
	})
	s.p.Write(KeyLearning, s.items)
	return true
}

// AdvanceStatus moves the item to its next status. Missing keys are ignored.
func (s *LearningStore) AdvanceStatus(key string) (domain.LearningItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(key)
	if i < 0 {
		return domain.LearningItem{}, false
	}
	items := slices.Clone(s.items)
	now := s.now()
	items[i].Status = items[i].Status.Next()
	items[i].UpdatedAt = &now
	s.items = items
	s.p.Write(KeyLearning, s.items)
	return items[i], true
}

func (s *LearningStore) Items() []domain.LearningItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *LearningStore) Item(key string) (domain.LearningItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(key); i >= 0 {
		return s.items[i], true
	}
	return domain.LearningItem{}, false
}

func (s *LearningStore) Contains(key string) bool {
	_, ok := s.Item(key)
	return ok
}

// Filter returns the items with the given status, or every item when status is empty.
func (s *LearningStore) Filter(status domain.LearningStatus) []domain.LearningItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.LearningItem, 0, len(s.items))
	for _, item := range s.items {
		if status == "" || item.Status == status {
			out = append(out, item)
		}
	}
	return out
}

// Counts returns the number of items per status. Every known status is present.
func (s *LearningStore) Counts() map[domain.LearningStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.LearningStatus]int, len(domain.LearningStatuses))
	for _, status := range domain.LearningStatuses {
		counts[status] = 0
	}
	for _, item := range s.items {
		counts[item.Status]++
	}
	return counts
}

// Keys returns the saved course keys in list order.
func (s *LearningStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.items))
	for i, item := range s.items {
		keys[i] = item.Key
	}
	return keys
}

func (s *LearningStore) indexLocked(key string) int {
	return slices.IndexFunc(s.items, func(item domain.LearningItem) bool { return item.Key == key })
}
