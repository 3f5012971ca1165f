package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/prepx/backend/internal/model/call"
)

// session holds the mutable state of one call. Everything below mu is
// guarded by it.
type session struct {
	mu sync.Mutex

	id          string
	userID      string
	userName    string
	interviewID string
	kind        string

	status     call.Status
	speaking   bool
	transcript Transcript
	vendor     VendorSession
	// attempt counts Start calls; a vendor reply for an older attempt is stale.
	attempt uint64

	subscribers map[uint64]chan call.Update
	nextSubID   uint64

	createdAt time.Time
	updatedAt time.Time
}

func newSession(id string, params CreateParams, now time.Time) *session {
	return &session{
		id:          id,
		userID:      params.UserID,
		userName:    params.UserName,
		interviewID: params.InterviewID,
		kind:        params.Type,
		status:      call.StatusInactive,
		subscribers: make(map[uint64]chan call.Update),
		createdAt:   now,
		updatedAt:   now,
	}
}

func (s *session) transition(to call.Status, now time.Time) error {
	if !call.CanTransition(s.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
	s.status = to
	if to != call.StatusActive {
		s.speaking = false
	}
	s.updatedAt = now
	return nil
}

func (s *session) live() bool {
	return s.status == call.StatusConnecting || s.status == call.StatusActive
}

func (s *session) snapshot() call.Call {
	snap := call.Call{
		ID:           s.id,
		UserID:       s.userID,
		UserName:     s.userName,
		InterviewID:  s.interviewID,
		Type:         s.kind,
		Status:       s.status,
		Speaking:     s.speaking,
		VendorCallID: s.vendor.VendorCallID,
		Transcript:   s.transcript.Entries(),
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
	if latest, ok := s.transcript.Latest(); ok {
		snap.Latest = latest.Content
	}
	return snap
}

// publish fans an update out without blocking; a subscriber whose buffer is
// full misses the update.
func (s *session) publish(update call.Update) {
	update.CallID = s.id
	for id, ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			logf("subscriber %d of call %s is lagging, dropped %s update", id, s.id, update.Kind)
		}
	}
}

func (s *session) publishStatus(now time.Time) {
	s.publish(call.Update{Kind: call.UpdateStatus, Status: s.status, Timestamp: now})
}

func (s *session) closeSubscribers() {
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}
