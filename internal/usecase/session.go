package usecase

import (
	"context"
	"sync"
)

// Session is one run of the batched refresh. Its context is cancelled with
// ErrCancelled as cause when the session is stopped or superseded.
type Session struct {
	ID     uint64
	ctx    context.Context
	cancel context.CancelCauseFunc
}

func (s *Session) Context() context.Context { return s.ctx }

// Cancelled reports whether the session was stopped or superseded.
func (s *Session) Cancelled() bool { return s.ctx.Err() != nil }

// SessionSlot holds at most one active session.
type SessionSlot struct {
	mu      sync.Mutex
	current *Session
	seq     uint64
}

func NewSessionSlot() *SessionSlot { return &SessionSlot{} }

// Begin cancels any active session and installs a new one derived from parent.
func (s *SessionSlot) Begin(parent context.Context) *Session {
	ctx, cancel := context.WithCancelCause(parent)

	s.mu.Lock()
	prev := s.current
	s.seq++
	sess := &Session{ID: s.seq, ctx: ctx, cancel: cancel}
	s.current = sess
	s.mu.Unlock()

	if prev != nil {
		prev.cancel(ErrCancelled)
	}
	return sess
}

// Release clears the slot if sess still owns it and frees its context.
func (s *SessionSlot) Release(sess *Session) {
	s.mu.Lock()
	if s.current == sess {
		s.current = nil
	}
	s.mu.Unlock()
	sess.cancel(context.Canceled)
}

// Cancel stops the active session, if any, without starting a new one.
func (s *SessionSlot) Cancel() bool {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	s.mu.Unlock()

	if prev == nil {
		return false
	}
	prev.cancel(ErrCancelled)
	return true
}

// Active reports whether a session currently owns the slot.
func (s *SessionSlot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}
