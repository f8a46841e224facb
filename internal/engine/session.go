// Package engine coordinates a session's concurrent concerns: which
// user-driven activity currently holds the list, and when externally
// signalled changes are allowed to trigger a reload. It replaces the ad hoc
// boolean flags of older clients with a validated activity state.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Activity is the operation currently holding the session, acting as a
// non-preemptive critical-section marker. External reloads are deferred
// while any activity is set.
type Activity int

const (
	ActivityNone Activity = iota
	ActivityCheckout
	ActivityDateChange
	ActivityEditing
)

func (a Activity) String() string {
	switch a {
	case ActivityNone:
		return "none"
	case ActivityCheckout:
		return "checkout"
	case ActivityDateChange:
		return "date-change"
	case ActivityEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// ErrActivityInProgress is returned when an activity starts while another
// one holds the session.
var ErrActivityInProgress = errors.New("another activity is in progress")

// DefaultStaleAfter bounds how long an activity may hold the session before
// it is force-cleared. A crashed handler would otherwise freeze reloads
// forever; prematurely clearing can let a race through, but liveness wins.
const DefaultStaleAfter = 30 * time.Second

// Session coordinates one event's client session.
type Session struct {
	eventID    string
	reload     func(ctx context.Context, eventID string) error
	staleAfter time.Duration
	log        *slog.Logger

	mu            sync.Mutex
	activity      Activity
	pendingReload bool
	watchdog      *time.Timer
}

// NewSession creates a session for the event. reload is invoked whenever an
// external change notification is (re)played.
func NewSession(eventID string, reload func(ctx context.Context, eventID string) error, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		eventID:    eventID,
		reload:     reload,
		staleAfter: DefaultStaleAfter,
		log:        logger,
	}
}

// SetStaleAfter overrides the watchdog timeout, mainly for tests.
func (s *Session) SetStaleAfter(d time.Duration) { s.staleAfter = d }

// Activity returns the activity currently holding the session.
func (s *Session) Activity() Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity
}

// Begin claims the session for an activity. The returned done function
// releases the claim and replays a deferred reload, if one arrived in the
// meantime. Calling done more than once is harmless.
func (s *Session) Begin(a Activity) (done func(), err error) {
	s.mu.Lock()
	if s.activity != ActivityNone {
		s.mu.Unlock()
		return nil, ErrActivityInProgress
	}
	s.activity = a
	s.watchdog = time.AfterFunc(s.staleAfter, func() { s.forceClear(a) })
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.end(a) })
	}, nil
}

// GearChanged handles an advisory change notification for an event. While
// an activity holds the session the reload collapses into a single pending
// flag and replays once the activity ends.
func (s *Session) GearChanged(ctx context.Context, eventID string) {
	if eventID != s.eventID {
		return
	}

	s.mu.Lock()
	if s.activity != ActivityNone {
		s.pendingReload = true
		s.mu.Unlock()
		s.log.Debug("reload deferred", "activity", s.activity.String())
		return
	}
	s.mu.Unlock()

	if err := s.reload(ctx, eventID); err != nil {
		s.log.Warn("reload failed", "event", eventID, "error", err)
	}
}

// end releases the session if the given activity still holds it.
func (s *Session) end(a Activity) {
	s.mu.Lock()
	if s.activity != a {
		// The watchdog already force-cleared this claim.
		s.mu.Unlock()
		return
	}
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
	s.activity = ActivityNone
	replay := s.pendingReload
	s.pendingReload = false
	s.mu.Unlock()

	if replay {
		if err := s.reload(context.Background(), s.eventID); err != nil {
			s.log.Warn("deferred reload failed", "event", s.eventID, "error", err)
		}
	}
}

// forceClear is the watchdog path: the activity has held the session past
// the deadline, most likely because an error path never called done.
func (s *Session) forceClear(a Activity) {
	s.mu.Lock()
	if s.activity != a {
		s.mu.Unlock()
		return
	}
	s.log.Warn("activity held the session too long, force-clearing", "activity", a.String())
	s.watchdog = nil
	s.mu.Unlock()
	s.end(a)
}
