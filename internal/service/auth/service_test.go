package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/prepx/backend/internal/model/user"
)

func newTestService() (*Service, *user.MemoryStore) {
	store := user.NewMemoryStore()
	svc := NewService(store, Config{TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost})
	return svc, store
}

func TestSignUpThenSignIn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.SignUp(ctx, Form{Name: "Ada Lovelace", Email: "Ada@Example.com", Password: "engine"})
	if err != nil {
		t.Fatalf("SignUp err: %v", err)
	}
	if created.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %s", created.Email)
	}

	session, account, err := svc.SignIn(ctx, Form{Email: "ada@example.com", Password: "engine"})
	if err != nil {
		t.Fatalf("SignIn err: %v", err)
	}
	if account.ID != created.ID {
		t.Fatalf("unexpected account %s", account.ID)
	}
	if session.Token == "" {
		t.Fatal("expected session token")
	}

	got, err := svc.Authenticate(ctx, session.Token)
	if err != nil {
		t.Fatalf("Authenticate err: %v", err)
	}
	if got.Name != "Ada Lovelace" {
		t.Fatalf("unexpected user %+v", got)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	form := Form{Name: "Ada", Email: "ada@example.com", Password: "engine"}
	if _, err := svc.SignUp(ctx, form); err != nil {
		t.Fatalf("SignUp err: %v", err)
	}
	if _, err := svc.SignUp(ctx, form); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignUpRejectsPasswordBeyondBcryptLimit(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, Form{Name: "Ada", Email: "ada@example.com", Password: strings.Repeat("密", 30)})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := store.FindByEmail(ctx, "ada@example.com"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("account should not exist, got %v", err)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, Form{Name: "Ada", Email: "ada@example.com", Password: "engine"}); err != nil {
		t.Fatalf("SignUp err: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, Form{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, Form{Email: "nobody@example.com", Password: "engine"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestSignOutRevokesToken(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, Form{Name: "Ada", Email: "ada@example.com", Password: "engine"}); err != nil {
		t.Fatalf("SignUp err: %v", err)
	}
	session, _, err := svc.SignIn(ctx, Form{Email: "ada@example.com", Password: "engine"})
	if err != nil {
		t.Fatalf("SignIn err: %v", err)
	}

	if err := svc.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("SignOut err: %v", err)
	}
	if err := svc.SignOut(ctx, session.Token); err != nil {
		t.Fatalf("second SignOut should be a no-op, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, session.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthenticateExpiredSession(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	if err := store.CreateSession(ctx, user.Session{Token: "old", UserID: "u", ExpiresAt: time.Now().Add(-time.Minute)}); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "old"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := store.FindSession(ctx, "old"); !errors.Is(err, user.ErrSessionNotFound) {
		t.Fatal("expired session should be removed")
	}
}
