package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/prepx/backend/internal/model/interview"
	"github.com/zhouzirui/prepx/backend/internal/model/user"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.CreateSchema(context.Background()); err != nil {
		t.Fatalf("CreateSchema err: %v", err)
	}
	// second call must be a no-op
	if err := db.CreateSchema(context.Background()); err != nil {
		t.Fatalf("CreateSchema second call err: %v", err)
	}
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := Open(context.Background(), DriverSQLite, " "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	if got := pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"); got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Fatalf("unexpected rebind %q", got)
	}
	lite := &DB{driver: DriverSQLite}
	if got := lite.rebind("x = ?"); got != "x = ?" {
		t.Fatalf("sqlite query should be untouched, got %q", got)
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t).Users()
	created := time.Date(2025, time.January, 2, 3, 4, 5, 600, time.UTC)

	u := user.User{ID: "u1", Name: "Ada", Email: "Ada@Example.com", PasswordHash: []byte("hash"), CreatedAt: created}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("Create err: %v", err)
	}
	dup := user.User{ID: "u2", Name: "Other", Email: "ada@example.com ", PasswordHash: []byte("x"), CreatedAt: created}
	if err := store.Create(ctx, dup); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	got, err := store.FindByEmail(ctx, "ADA@example.com")
	if err != nil {
		t.Fatalf("FindByEmail err: %v", err)
	}
	if got.ID != "u1" || got.Email != "ada@example.com" || string(got.PasswordHash) != "hash" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := store.FindByID(ctx, "missing"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	session := user.Session{Token: "tok", UserID: "u1", ExpiresAt: created.Add(time.Hour)}
	if err := store.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	found, err := store.FindSession(ctx, "tok")
	if err != nil {
		t.Fatalf("FindSession err: %v", err)
	}
	if found.UserID != "u1" || !found.ExpiresAt.Equal(session.ExpiresAt) {
		t.Fatalf("unexpected session %+v", found)
	}
	if err := store.DeleteSession(ctx, "tok"); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, err := store.FindSession(ctx, "tok"); !errors.Is(err, user.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestInterviewStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t).Interviews()

	if err := store.Seed(ctx, interview.Seed()); err != nil {
		t.Fatalf("Seed err: %v", err)
	}
	if err := store.Seed(ctx, interview.Seed()); err != nil {
		t.Fatalf("Seed second call err: %v", err)
	}

	mine, err := store.ListByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("ListByUser err: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "1" || mine[1].ID != "2" {
		t.Fatalf("expected newest first [1 2], got %+v", mine)
	}
	if len(mine[0].Techstack) != 4 {
		t.Fatalf("techstack not round-tripped: %v", mine[0].Techstack)
	}

	latest, err := store.ListLatest(ctx, "user1", 10)
	if err != nil {
		t.Fatalf("ListLatest err: %v", err)
	}
	for _, item := range latest {
		if !item.Finalized || item.UserID == "user1" {
			t.Fatalf("unexpected latest item %+v", item)
		}
	}

	if _, err := store.FindByID(ctx, "missing"); !errors.Is(err, interview.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeedbackUpsert(t *testing.T) {
	ctx := context.Background()
	store := setupTestDB(t).Interviews()
	if err := store.Seed(ctx, interview.Seed()); err != nil {
		t.Fatalf("Seed err: %v", err)
	}

	if _, err := store.FindFeedback(ctx, "1", "user1"); !errors.Is(err, interview.ErrFeedbackNotFound) {
		t.Fatalf("expected ErrFeedbackNotFound, got %v", err)
	}

	first := interview.Feedback{
		ID: "f1", InterviewID: "1", UserID: "user1", TotalScore: 40,
		CategoryScores: []interview.CategoryScore{{Name: "Communication Skills", Score: 40, Comment: "ok"}},
		Strengths:      []string{"curious"},
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.SaveFeedback(ctx, first); err != nil {
		t.Fatalf("SaveFeedback err: %v", err)
	}

	second := first
	second.ID = "f2"
	second.TotalScore = 75
	second.FinalAssessment = "Improved."
	if err := store.SaveFeedback(ctx, second); err != nil {
		t.Fatalf("SaveFeedback upsert err: %v", err)
	}

	got, err := store.FindFeedback(ctx, "1", "user1")
	if err != nil {
		t.Fatalf("FindFeedback err: %v", err)
	}
	if got.ID != "f2" || got.TotalScore != 75 || got.FinalAssessment != "Improved." {
		t.Fatalf("feedback not replaced: %+v", got)
	}
	if len(got.CategoryScores) != 1 || got.CategoryScores[0].Name != "Communication Skills" {
		t.Fatalf("category scores lost: %+v", got.CategoryScores)
	}
	if got.AreasForImprovement == nil {
		t.Fatal("empty lists should decode as empty, not nil")
	}

	orphan := first
	orphan.InterviewID = "missing"
	if err := store.SaveFeedback(ctx, orphan); !errors.Is(err, interview.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown interview, got %v", err)
	}
}
