package state

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"learningpulse/pkg/domain"
	"learningpulse/pkg/kv"
	"learningpulse/pkg/persist"
)

var t0 = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// stepClock returns t0 and advances one minute per call.
func stepClock() Clock {
	next := t0
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func openPersister(t *testing.T, store kv.Store) *persist.Adapter {
	t.Helper()
	a := persist.NewAdapter(store, persist.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})
	return a
}

func flushed(t *testing.T, a *persist.Adapter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func course(key string) domain.Course {
	return domain.Course{
		Key:              key,
		Title:            "Course " + key,
		InstructorID:     1,
		Instructor:       "Dr. Sarah Chen",
		Duration:         "4h 30m",
		Rating:           4.5,
		PreviewVideoID:   "rfscVS0vtbw",
		WhatYouWillLearn: []string{"basics", "practice"},
		Subject:          "Programming",
		LessonsCount:     12,
	}
}
