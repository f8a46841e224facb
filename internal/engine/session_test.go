package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newCountingSession(t *testing.T) (*Session, *atomic.Int32) {
	t.Helper()
	var reloads atomic.Int32
	s := NewSession("event-a", func(ctx context.Context, eventID string) error {
		reloads.Add(1)
		return nil
	}, nil)
	return s, &reloads
}

func TestReloadRunsImmediatelyWhenIdle(t *testing.T) {
	s, reloads := newCountingSession(t)

	s.GearChanged(context.Background(), "event-a")
	if got := reloads.Load(); got != 1 {
		t.Errorf("expected 1 reload, got %d", got)
	}
}

func TestNotificationsForOtherEventsIgnored(t *testing.T) {
	s, reloads := newCountingSession(t)

	s.GearChanged(context.Background(), "event-b")
	if got := reloads.Load(); got != 0 {
		t.Errorf("expected no reload for another event, got %d", got)
	}
}

func TestReloadDeferredDuringActivity(t *testing.T) {
	s, reloads := newCountingSession(t)

	done, err := s.Begin(ActivityCheckout)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	s.GearChanged(context.Background(), "event-a")
	s.GearChanged(context.Background(), "event-a")
	if got := reloads.Load(); got != 0 {
		t.Fatalf("reload should be deferred during checkout, got %d", got)
	}

	done()
	// Multiple deferred notifications collapse into one replay.
	if got := reloads.Load(); got != 1 {
		t.Errorf("expected a single replayed reload, got %d", got)
	}
}

func TestBeginWhileBusyFails(t *testing.T) {
	s, _ := newCountingSession(t)

	done, err := s.Begin(ActivityDateChange)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := s.Begin(ActivityEditing); !errors.Is(err, ErrActivityInProgress) {
		t.Errorf("expected ErrActivityInProgress, got %v", err)
	}

	done()
	if _, err := s.Begin(ActivityEditing); err != nil {
		t.Errorf("session should be free after done: %v", err)
	}
}

func TestDoneIsIdempotent(t *testing.T) {
	s, reloads := newCountingSession(t)

	done, _ := s.Begin(ActivityEditing)
	s.GearChanged(context.Background(), "event-a")
	done()
	done()

	if got := reloads.Load(); got != 1 {
		t.Errorf("expected one reload despite repeated done, got %d", got)
	}
}

func TestWatchdogForceClearsStuckActivity(t *testing.T) {
	s, reloads := newCountingSession(t)
	s.SetStaleAfter(20 * time.Millisecond)

	if _, err := s.Begin(ActivityCheckout); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	s.GearChanged(context.Background(), "event-a")

	deadline := time.Now().Add(2 * time.Second)
	for s.Activity() != ActivityNone && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Activity() != ActivityNone {
		t.Fatal("watchdog did not clear the stuck activity")
	}
	if got := reloads.Load(); got != 1 {
		t.Errorf("expected the deferred reload to replay after force-clear, got %d", got)
	}

	if _, err := s.Begin(ActivityEditing); err != nil {
		t.Errorf("session should accept new activities after force-clear: %v", err)
	}
}
