package security

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestAlerter(t *testing.T) *AuditAlerter {
	t.Helper()
	srv := miniredis.RunT(t)
	alerter, err := NewAuditAlerter(redis.NewClient(&redis.Options{Addr: srv.Addr()}), "test:alerts")
	if err != nil {
		t.Fatalf("new alerter: %v", err)
	}
	return alerter
}

func TestAuditAlerterObserveTriggers(t *testing.T) {
	alerter := newTestAlerter(t)
	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		result, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "127.0.0.1")
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if result.Triggered != (i == 10) {
			t.Fatalf("attempt %d: triggered=%v count=%d", i, result.Triggered, result.Count)
		}
	}
	result, err := alerter.Observe(ctx, EventLogin, OutcomeFail, "10.0.0.9")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Count != 1 {
		t.Fatalf("other clients count separately, got %d", result.Count)
	}
}

func TestAuditAlerterWindowRollsOver(t *testing.T) {
	alerter := newTestAlerter(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	alerter.now = func() time.Time { return now }
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if _, err := alerter.Observe(ctx, EventLogin, OutcomeRateLimited, "ip"); err != nil {
			t.Fatalf("observe: %v", err)
		}
	}
	now = now.Add(time.Minute)
	result, err := alerter.Observe(ctx, EventLogin, OutcomeRateLimited, "ip")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 1 {
		t.Fatalf("expected fresh window, got %+v", result)
	}
}

func TestAuditAlerterObserveIgnoresUnknownRule(t *testing.T) {
	alerter := newTestAlerter(t)
	result, err := alerter.Observe(context.Background(), "auth.custom", "success", "127.0.0.1")
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if result.Triggered || result.Count != 0 {
		t.Fatalf("unexpected result for unknown rule: %+v", result)
	}
}

func TestNewAuditAlerterRequiresClient(t *testing.T) {
	if _, err := NewAuditAlerter(nil, ""); err == nil {
		t.Fatalf("expected error for nil client")
	}
	var alerter *AuditAlerter
	if _, err := alerter.Observe(context.Background(), EventLogin, OutcomeFail, "ip"); err != nil {
		t.Fatalf("nil alerter should be a no-op: %v", err)
	}
}
