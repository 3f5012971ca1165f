package interview

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound         = errors.New("interview not found")
	ErrFeedbackNotFound = errors.New("feedback not found")
)

// Store exposes interview and feedback persistence to services and handlers.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]Interview, error)
	ListLatest(ctx context.Context, excludeUserID string, limit int) ([]Interview, error)
	FindByID(ctx context.Context, id string) (Interview, error)
	Save(ctx context.Context, item Interview) error
	SaveFeedback(ctx context.Context, feedback Feedback) error
	FindFeedback(ctx context.Context, interviewID, userID string) (Feedback, error)
}

// MemoryStore implements Store with in-memory maps, suitable for MVP.
type MemoryStore struct {
	mu        sync.RWMutex
	items     map[string]Interview
	feedbacks map[string]Feedback
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied interviews.
func NewMemoryStore(items []Interview) *MemoryStore {
	store := &MemoryStore{
		items:     make(map[string]Interview, len(items)),
		feedbacks: make(map[string]Feedback),
	}
	for _, item := range items {
		store.items[item.ID] = item
	}
	return store
}

// ListByUser returns the interviews owned by userID, newest first.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Interview
	for _, item := range s.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListLatest returns finalized interviews not owned by excludeUserID.
func (s *MemoryStore) ListLatest(_ context.Context, excludeUserID string, limit int) ([]Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Interview
	for _, item := range s.items {
		if !item.Finalized || item.UserID == excludeUserID {
			continue
		}
		out = append(out, item)
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindByID looks up an interview by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return Interview{}, ErrNotFound
	}
	return item, nil
}

// Save inserts or replaces an interview.
func (s *MemoryStore) Save(_ context.Context, item Interview) error {
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("interview id is required")
	}
	s.mu.Lock()
	s.items[item.ID] = item
	s.mu.Unlock()
	return nil
}

// SaveFeedback stores feedback, replacing any earlier one for the same
// interview and user.
func (s *MemoryStore) SaveFeedback(_ context.Context, feedback Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[feedback.InterviewID]; !ok {
		return ErrNotFound
	}
	s.feedbacks[feedbackKey(feedback.InterviewID, feedback.UserID)] = feedback
	return nil
}

// FindFeedback returns the feedback a user received for an interview.
func (s *MemoryStore) FindFeedback(_ context.Context, interviewID, userID string) (Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	feedback, ok := s.feedbacks[feedbackKey(interviewID, userID)]
	if !ok {
		return Feedback{}, ErrFeedbackNotFound
	}
	return feedback, nil
}

func feedbackKey(interviewID, userID string) string {
	return interviewID + "/" + userID
}

func sortNewestFirst(items []Interview) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
