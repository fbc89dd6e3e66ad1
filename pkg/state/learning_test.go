package state

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/kv"
)

func TestToggleAlternatesPresence(t *testing.T) {
	s := NewLearningStore(openPersister(t, kv.NewMemoryStore()), stepClock())
	c := course("7")

	var lastAdded domain.LearningItem
	for i := 1; i <= 5; i++ {
		saved := s.Toggle(c)
		if saved != (i%2 == 1) {
			t.Fatalf("toggle %d: expected saved=%v", i, i%2 == 1)
		}
		item, ok := s.Item("7")
		if ok != saved {
			t.Fatalf("toggle %d: presence %v does not match result %v", i, ok, saved)
		}
		if !ok {
			continue
		}
		if item.Status != domain.StatusSaved {
			t.Fatalf("toggle %d: expected Saved, got %q", i, item.Status)
		}
		if item.UpdatedAt != nil {
			t.Fatalf("toggle %d: fresh item should not carry updatedAt", i)
		}
		if !lastAdded.AddedAt.IsZero() && !item.AddedAt.After(lastAdded.AddedAt) {
			t.Fatalf("toggle %d: expected a fresh addedAt", i)
		}
		lastAdded = item
	}
	if len(s.Items()) != 1 {
		t.Fatalf("expected exactly one entry, got %d", len(s.Items()))
	}
}

func TestAdvanceStatusCycles(t *testing.T) {
	s := NewLearningStore(openPersister(t, kv.NewMemoryStore()), stepClock())
	s.Toggle(course("3"))

	want := []domain.LearningStatus{domain.StatusInProgress, domain.StatusCompleted, domain.StatusSaved}
	for i, status := range want {
		item, ok := s.AdvanceStatus("3")
		if !ok {
			t.Fatalf("advance %d: item missing", i)
		}
		if item.Status != status {
			t.Fatalf("advance %d: expected %q, got %q", i, status, item.Status)
		}
		if item.UpdatedAt == nil || !item.UpdatedAt.After(item.AddedAt) {
			t.Fatalf("advance %d: expected updatedAt after addedAt", i)
		}
	}
}

func TestAdvanceStatusIgnoresMissingKey(t *testing.T) {
	store := kv.NewMemoryStore()
	p := openPersister(t, store)
	s := NewLearningStore(p, stepClock())

	if _, ok := s.AdvanceStatus("missing"); ok {
		t.Fatalf("expected no item")
	}
	flushed(t, p)
	if _, ok, _ := store.Get(context.Background(), KeyLearning); ok {
		t.Fatalf("expected nothing persisted for a no-op")
	}
}

func TestToggleAdvanceToggleRemoves(t *testing.T) {
	s := NewLearningStore(openPersister(t, kv.NewMemoryStore()), stepClock())
	c := domain.Course{Key: "10"}

	s.Toggle(c)
	s.AdvanceStatus("10")
	if item, _ := s.Item("10"); item.Status != domain.StatusInProgress {
		t.Fatalf("expected In Progress, got %q", item.Status)
	}
	s.Toggle(c)
	if s.Contains("10") {
		t.Fatalf("expected item removed")
	}
}

func TestLearningFilterAndCounts(t *testing.T) {
	s := NewLearningStore(openPersister(t, kv.NewMemoryStore()), stepClock())
	for _, key := range []string{"1", "2", "3", "4"} {
		s.Toggle(course(key))
	}
	s.AdvanceStatus("2")
	s.AdvanceStatus("3")
	s.AdvanceStatus("3")

	if got := s.Filter(domain.StatusSaved); len(got) != 2 || got[0].Key != "1" || got[1].Key != "4" {
		t.Fatalf("unexpected saved items: %+v", got)
	}
	if got := s.Filter(""); len(got) != 4 {
		t.Fatalf("expected every item for empty filter, got %d", len(got))
	}
	want := map[domain.LearningStatus]int{
		domain.StatusSaved:      2,
		domain.StatusInProgress: 1,
		domain.StatusCompleted:  1,
	}
	if diff := cmp.Diff(want, s.Counts()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "2", "3", "4"}, s.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestLearningRoundTrip(t *testing.T) {
	store := kv.NewMemoryStore()
	p := openPersister(t, store)
	s := NewLearningStore(p, stepClock())
	for _, key := range []string{"5", "1", "9"} {
		s.Toggle(course(key))
	}
	s.AdvanceStatus("1")
	flushed(t, p)

	reloaded := NewLearningStore(openPersister(t, store), nil)
	if err := reloaded.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if diff := cmp.Diff(s.Items(), reloaded.Items()); diff != "" {
		t.Fatalf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestLearningRestoreFallsBackOnCorruptSnapshot(t *testing.T) {
	store := kv.NewMemoryStore()
	_ = store.Set(context.Background(), KeyLearning, `{"oops":`)
	s := NewLearningStore(openPersister(t, store), nil)
	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(s.Items()) != 0 {
		t.Fatalf("expected empty list, got %d items", len(s.Items()))
	}
}
