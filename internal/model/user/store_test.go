package user

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreEmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, User{ID: "u1", Name: "Ada", Email: "Ada@Example.com"}); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if err := store.Create(ctx, User{ID: "u2", Name: "Ada", Email: " ada@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := store.FindByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("FindByEmail err: %v", err)
	}
	if got.ID != "u1" || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestMemoryStoreSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	session := Session{Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}

	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if _, err := store.FindSession(ctx, "tok"); err != nil {
		t.Fatalf("FindSession err: %v", err)
	}
	if err := store.DeleteSession(ctx, "tok"); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, err := store.FindSession(ctx, "tok"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	if !(Session{ExpiresAt: now}).Expired(now) {
		t.Fatal("session expiring now should be expired")
	}
	if (Session{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatal("future session should be valid")
	}
}
