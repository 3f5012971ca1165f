package call

import (
	"errors"
	"testing"
	"time"

	"github.com/zhouzirui/prepx/backend/internal/model/call"
)

func TestTranscriptLatestIsLastAppended(t *testing.T) {
	var tr Transcript
	if _, ok := tr.Latest(); ok {
		t.Fatal("empty transcript should have no latest entry")
	}

	now := time.Now()
	if _, err := tr.Append(call.RoleAssistant, "Tell me about yourself.", now); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := tr.Append(call.RoleUser, "I build backends.", now); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	latest, ok := tr.Latest()
	if !ok || latest.Content != "I build backends." {
		t.Fatalf("unexpected latest %+v", latest)
	}
	if tr.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", tr.Len())
	}
}

func TestTranscriptRejectsUnknownRoleAndEmpty(t *testing.T) {
	var tr Transcript
	if _, err := tr.Append(call.Role("narrator"), "hi", time.Now()); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
	if _, err := tr.Append(call.RoleUser, "   ", time.Now()); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("expected ErrEmptySegment, got %v", err)
	}
	if tr.Len() != 0 {
		t.Fatalf("rejected segments must not be stored")
	}
}

func TestTranscriptEntriesIsACopy(t *testing.T) {
	var tr Transcript
	if _, err := tr.Append(call.RoleSystem, "begin", time.Now()); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	entries := tr.Entries()
	entries[0].Content = "mutated"

	latest, _ := tr.Latest()
	if latest.Content != "begin" {
		t.Fatal("Entries must not expose internal storage")
	}
}
