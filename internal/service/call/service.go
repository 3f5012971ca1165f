package call

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/prepx/backend/internal/model/call"
)

var (
	ErrCallNotFound      = errors.New("call not found")
	ErrUserRequired      = errors.New("user id is required")
	ErrInvalidTransition = errors.New("invalid call status transition")
	ErrCallNotLive       = errors.New("call is not connecting or active")
	ErrVendorUnavailable = errors.New("voice vendor unavailable")
	ErrVendorFailed      = errors.New("voice vendor failed to start call")
	ErrUnsupportedEvent  = errors.New("unsupported call event")
	ErrSubscriberLimit   = errors.New("too many subscribers for call")
)

const (
	defaultRedirect        = "/"
	defaultSubscriberLimit = 16
	defaultBufferSize      = 32
)

// CreateParams describes a new call.
type CreateParams struct {
	UserID      string
	UserName    string
	InterviewID string
	Type        string
}

// StartParams is the session config handed to the voice vendor.
type StartParams struct {
	CallID      string
	UserID      string
	UserName    string
	InterviewID string
	Type        string
}

// VendorSession identifies the vendor-side call once it has been created.
type VendorSession struct {
	VendorCallID string
	ControlURL   string
}

// Vendor abstracts the real-time voice provider.
type Vendor interface {
	Start(ctx context.Context, params StartParams) (VendorSession, error)
	Stop(ctx context.Context, session VendorSession) error
}

// FinishHook runs once for every call that reaches FINISHED.
type FinishHook func(snapshot call.Call)

// Options tunes the service; zero values pick defaults.
type Options struct {
	Redirect        string
	SubscriberLimit int
	BufferSize      int
}

// Service owns every live call: its status machine, transcript and the
// subscribers watching it.
type Service struct {
	vendor Vendor
	opts   Options
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
	byVendor map[string]string
	hooks    []FinishHook
}

// NewService creates a call registry. vendor may be nil, in which case Start
// always fails with ErrVendorUnavailable.
func NewService(vendor Vendor, opts Options) *Service {
	if opts.Redirect == "" {
		opts.Redirect = defaultRedirect
	}
	if opts.SubscriberLimit <= 0 {
		opts.SubscriberLimit = defaultSubscriberLimit
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	return &Service{
		vendor:   vendor,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*session),
		byVendor: make(map[string]string),
	}
}

// OnFinish registers a hook invoked after a call enters FINISHED.
func (s *Service) OnFinish(hook FinishHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

// Create provisions an INACTIVE call with an empty transcript.
func (s *Service) Create(_ context.Context, params CreateParams) (call.Call, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return call.Call{}, ErrUserRequired
	}
	if params.Type == "" {
		params.Type = "generate"
	}

	sess := newSession(uuid.NewString(), params, s.now())

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	log.Printf("[call] created call=%s user=%s interview=%s", sess.id, params.UserID, params.InterviewID)
	return sess.snapshot(), nil
}

// Get returns the current snapshot of a call.
func (s *Service) Get(_ context.Context, callID string) (call.Call, error) {
	sess, err := s.lookup(callID)
	if err != nil {
		return call.Call{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

// Transcript returns the finalized segments recorded so far.
func (s *Service) Transcript(_ context.Context, callID string) ([]call.Entry, error) {
	sess, err := s.lookup(callID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.transcript.Entries(), nil
}

// Start moves the call to CONNECTING and asks the vendor to begin. A vendor
// failure reverts the call to INACTIVE so the user can try again. If the call
// was stopped or reset while the vendor was dialing, the new vendor call is
// hung up and ErrCallNotLive is returned.
func (s *Service) Start(ctx context.Context, callID string) (call.Call, error) {
	sess, err := s.lookup(callID)
	if err != nil {
		return call.Call{}, err
	}

	sess.mu.Lock()
	now := s.now()
	if err := sess.transition(call.StatusConnecting, now); err != nil {
		sess.mu.Unlock()
		return call.Call{}, err
	}
	sess.publishStatus(now)
	sess.attempt++
	attempt := sess.attempt
	params := StartParams{
		CallID:      sess.id,
		UserID:      sess.userID,
		UserName:    sess.userName,
		InterviewID: sess.interviewID,
		Type:        sess.kind,
	}
	sess.mu.Unlock()

	var vendorSession VendorSession
	startErr := ErrVendorUnavailable
	if s.vendor != nil {
		vendorSession, startErr = s.vendor.Start(ctx, params)
	}

	if startErr != nil {
		log.Printf("[call] vendor start failed call=%s: %v", callID, startErr)
		sess.mu.Lock()
		now = s.now()
		if sess.status == call.StatusConnecting && sess.attempt == attempt {
			_ = sess.transition(call.StatusInactive, now)
			sess.publishStatus(now)
		}
		sess.publish(call.Update{Kind: call.UpdateError, Error: startErr.Error(), Timestamp: now})
		snap := sess.snapshot()
		sess.mu.Unlock()

		if errors.Is(startErr, ErrVendorUnavailable) {
			return snap, startErr
		}
		return snap, fmt.Errorf("%w: %v", ErrVendorFailed, startErr)
	}

	sess.mu.Lock()
	if !sess.live() || sess.attempt != attempt {
		// stopped, reset or restarted while the vendor was dialing
		snap := sess.snapshot()
		sess.mu.Unlock()
		log.Printf("[call] vendor call=%s vendorCall=%s outlived its start, stopping", callID, vendorSession.VendorCallID)
		if err := s.vendor.Stop(context.WithoutCancel(ctx), vendorSession); err != nil {
			log.Printf("[call] vendor stop failed call=%s: %v", callID, err)
		}
		return snap, fmt.Errorf("%w: start superseded", ErrCallNotLive)
	}
	sess.vendor = vendorSession
	snap := sess.snapshot()
	sess.mu.Unlock()

	if vendorSession.VendorCallID != "" {
		s.mu.Lock()
		s.byVendor[vendorSession.VendorCallID] = callID
		s.mu.Unlock()
	}

	log.Printf("[call] vendor accepted call=%s vendorCall=%s", callID, vendorSession.VendorCallID)
	return snap, nil
}

// Stop ends the call on the user's request. The vendor is told to hang up on
// a best-effort basis.
func (s *Service) Stop(ctx context.Context, callID string) (call.Call, error) {
	sess, err := s.lookup(callID)
	if err != nil {
		return call.Call{}, err
	}

	sess.mu.Lock()
	now := s.now()
	if err := sess.transition(call.StatusFinished, now); err != nil {
		sess.mu.Unlock()
		return call.Call{}, err
	}
	s.announceFinished(sess, now)
	vendorSession := sess.vendor
	snap := sess.snapshot()
	sess.mu.Unlock()

	if s.vendor != nil && vendorSession != (VendorSession{}) {
		if err := s.vendor.Stop(ctx, vendorSession); err != nil {
			log.Printf("[call] vendor stop failed call=%s: %v", callID, err)
		}
	}

	s.runHooks(snap)
	return snap, nil
}

// HandleEvent applies one vendor callback to the call.
func (s *Service) HandleEvent(_ context.Context, callID string, event call.Event) (call.Call, error) {
	sess, err := s.lookup(callID)
	if err != nil {
		return call.Call{}, err
	}

	sess.mu.Lock()
	now := s.now()
	finished := false

	switch event.Type {
	case call.EventCallStart:
		err = sess.transition(call.StatusActive, now)
		if err == nil {
			sess.publishStatus(now)
		}
	case call.EventCallEnd:
		err = sess.transition(call.StatusFinished, now)
		if err == nil {
			s.announceFinished(sess, now)
			finished = true
		}
	case call.EventMessage:
		err = s.appendMessage(sess, event.Message, now)
	case call.EventSpeechStart, call.EventSpeechEnd:
		if !sess.live() {
			err = ErrCallNotLive
			break
		}
		speaking := event.Type == call.EventSpeechStart
		sess.speaking = speaking
		sess.updatedAt = now
		sess.publish(call.Update{Kind: call.UpdateSpeech, Speaking: &speaking, Timestamp: now})
	case call.EventError:
		log.Printf("[call] vendor error call=%s: %s", callID, event.Error)
		if sess.live() {
			_ = sess.transition(call.StatusInactive, now)
			sess.publishStatus(now)
		}
		sess.publish(call.Update{Kind: call.UpdateError, Error: event.Error, Timestamp: now})
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.Type)
	}

	snap := sess.snapshot()
	sess.mu.Unlock()

	if finished {
		s.runHooks(snap)
	}
	return snap, err
}

// HandleVendorEvent routes an event by our call id when known, otherwise by
// the vendor's call id.
func (s *Service) HandleVendorEvent(ctx context.Context, callID, vendorCallID string, event call.Event) (call.Call, error) {
	if callID == "" {
		s.mu.RLock()
		callID = s.byVendor[vendorCallID]
		s.mu.RUnlock()
	}
	if callID == "" {
		return call.Call{}, ErrCallNotFound
	}
	return s.HandleEvent(ctx, callID, event)
}

// Subscribe returns a channel of updates for the call and a function that
// releases it.
func (s *Service) Subscribe(callID string) (<-chan call.Update, func(), error) {
	sess, err := s.lookup(callID)
	if err != nil {
		return nil, nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if len(sess.subscribers) >= s.opts.SubscriberLimit {
		return nil, nil, ErrSubscriberLimit
	}

	id := sess.nextSubID
	sess.nextSubID++
	ch := make(chan call.Update, s.opts.BufferSize)
	sess.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			sess.mu.Lock()
			defer sess.mu.Unlock()
			if existing, ok := sess.subscribers[id]; ok {
				delete(sess.subscribers, id)
				close(existing)
			}
		})
	}
	return ch, cancel, nil
}

// Prune drops finished calls last updated before cutoff and returns how many
// were removed.
func (s *Service) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		stale := sess.status.Terminal() && sess.updatedAt.Before(cutoff)
		if stale {
			sess.closeSubscribers()
			if sess.vendor.VendorCallID != "" {
				delete(s.byVendor, sess.vendor.VendorCallID)
			}
		}
		sess.mu.Unlock()

		if stale {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// List returns snapshots of the user's calls, newest first.
func (s *Service) List(_ context.Context, userID string) []call.Call {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	out := make([]call.Call, 0)
	for _, sess := range sessions {
		sess.mu.Lock()
		if sess.userID == userID {
			out = append(out, sess.snapshot())
		}
		sess.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Service) lookup(callID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrCallNotFound
	}
	return sess, nil
}

func (s *Service) appendMessage(sess *session, msg *call.VendorMessage, now time.Time) error {
	if msg == nil || !msg.IsFinalTranscript() {
		return nil
	}
	if !sess.live() {
		return ErrCallNotLive
	}

	entry, err := sess.transcript.Append(msg.Role, msg.Transcript, now)
	if err != nil {
		return err
	}
	sess.updatedAt = now
	sess.publish(call.Update{Kind: call.UpdateTranscript, Entry: &entry, Timestamp: now})
	return nil
}

// announceFinished must be called exactly once, right after the transition
// into FINISHED. FINISHED has no outgoing edges, so this holds by
// construction.
func (s *Service) announceFinished(sess *session, now time.Time) {
	sess.publishStatus(now)
	sess.publish(call.Update{Kind: call.UpdateRedirect, Redirect: s.opts.Redirect, Timestamp: now})
	log.Printf("[call] finished call=%s segments=%d", sess.id, sess.transcript.Len())
}

func (s *Service) runHooks(snap call.Call) {
	s.mu.RLock()
	hooks := append([]FinishHook(nil), s.hooks...)
	s.mu.RUnlock()

	for _, hook := range hooks {
		hook(snap)
	}
}

func logf(format string, args ...any) {
	log.Printf("[call] "+format, args...)
}
