package state

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"learningpulse/pkg/kv"
)

func TestRecordViewMovesToFront(t *testing.T) {
	s := NewHistoryStore(openPersister(t, kv.NewMemoryStore()))
	s.RecordView(course("A"))
	s.RecordView(course("B"))
	s.RecordView(course("A"))

	if diff := cmp.Diff([]string{"A", "B"}, s.Keys()); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryKeepsMostRecent(t *testing.T) {
	s := NewHistoryStore(openPersister(t, kv.NewMemoryStore()))
	for i := 1; i <= 20; i++ {
		s.RecordView(course(strconv.Itoa(i)))
	}

	keys := s.Keys()
	if len(keys) != MaxHistory {
		t.Fatalf("expected %d entries, got %d", MaxHistory, len(keys))
	}
	for i, key := range keys {
		if want := strconv.Itoa(20 - i); key != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, key)
		}
	}
}

func TestHistoryClear(t *testing.T) {
	store := kv.NewMemoryStore()
	p := openPersister(t, store)
	s := NewHistoryStore(p)
	s.RecordView(course("1"))
	flushed(t, p)

	s.Clear()
	flushed(t, p)
	if len(s.Items()) != 0 {
		t.Fatalf("expected empty history")
	}
	if _, ok, _ := store.Get(context.Background(), KeyHistory); ok {
		t.Fatalf("expected history key removed")
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	store := kv.NewMemoryStore()
	p := openPersister(t, store)
	s := NewHistoryStore(p)
	for _, key := range []string{"3", "8", "1", "8"} {
		s.RecordView(course(key))
	}
	flushed(t, p)

	reloaded := NewHistoryStore(openPersister(t, store))
	if err := reloaded.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if diff := cmp.Diff(s.Items(), reloaded.Items()); diff != "" {
		t.Fatalf("round trip mismatch (-saved +loaded):\n%s", diff)
	}
}
