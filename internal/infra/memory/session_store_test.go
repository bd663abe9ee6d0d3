package memory

import (
	"testing"
	"time"

	"quizdesk/internal/app"
	"quizdesk/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()

	store.Put(app.NewSession("s-1"))
	if _, ok := store.Get("s-1"); !ok {
		t.Fatalf("expected session present")
	}
	if got := len(store.All()); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}

	store.Delete("s-1")
	if _, ok := store.Get("s-1"); ok {
		t.Fatalf("expected session removed")
	}
	if got := len(store.All()); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}

func TestSessionStoreExpiresIdleSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewSessionStore(WithIdleTTL(time.Minute), WithStoreClock(clock))

	idle := app.NewSession("idle")
	busy := app.NewSession("busy")
	store.Put(idle)
	store.Put(busy)

	now = now.Add(50 * time.Second)
	if _, ok := store.Get("busy"); !ok {
		t.Fatalf("expected busy session present")
	}

	now = now.Add(20 * time.Second)
	reaped := store.Reap()
	if len(reaped) != 1 || reaped[0].ID() != "idle" {
		t.Fatalf("expected only the idle session reaped, got %v", reaped)
	}
	if _, err := idle.Activate(domain.Quiz{DurationMinutes: 1}); err != domain.ErrSessionClosed {
		t.Fatalf("expected reaped session closed, got %v", err)
	}
	if got := len(store.All()); got != 1 {
		t.Fatalf("expected 1 session left, got %d", got)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get("busy"); ok {
		t.Fatalf("expected expired session to be gone on lookup")
	}
	if got := len(store.All()); got != 0 {
		t.Fatalf("expected no sessions, got %d", got)
	}
}
