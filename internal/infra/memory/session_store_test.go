package memory

import (
	"errors"
	"testing"
	"time"

	"quizclash-service/internal/app"
	"quizclash-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	session := app.NewSession("ABC234", "host", 10, 3, time.Now())

	if err := store.Create("ABC234", session); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, ok := store.Get("ABC234")
	if !ok || got != session || got.Code() != "ABC234" {
		t.Fatalf("expected the created session back")
	}
	if n := len(store.All()); n != 1 {
		t.Fatalf("expected 1 session, got %d", n)
	}

	store.Delete("ABC234")
	if _, ok := store.Get("ABC234"); ok {
		t.Fatalf("expected session removed")
	}
	store.Delete("ABC234")
}

func TestSessionStoreRejectsTakenCode(t *testing.T) {
	store := NewSessionStore()
	first := app.NewSession("ABC234", "host", 10, 3, time.Now())
	second := app.NewSession("ABC234", "other", 10, 3, time.Now())

	if err := store.Create("ABC234", first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create("ABC234", second); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}
	got, _ := store.Get("ABC234")
	if got != first || got.Snapshot().Host != "host" {
		t.Fatalf("original session must survive a collision")
	}
}
