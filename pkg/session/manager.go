// Package session implements the bounded-lifetime conversational state used
// by multi-turn command flows: disambiguation, image capture, paged
// recommendation and credential binding.
//
// At most one session is active per (channel, chat, sender) key. Opening a
// session for a key that already holds one closes the old session instead of
// merging two logical flows.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PyuraMazo/galgame-box/pkg/apierr"
	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

type Manager struct {
	mu     sync.Mutex
	active map[Key]*Session
}

func NewManager() *Manager {
	return &Manager{active: make(map[Key]*Session)}
}

// Session is one active wait loop. The owning handler calls Next to block for
// the user's reply and must Close the session on every exit path.
type Session struct {
	ID  string
	Key Key

	inbox chan bus.InboundMessage
	done  chan struct{}
	once  sync.Once
	mgr   *Manager
}

// Open registers a new session for key. An existing session for the same key
// is closed first: its pending Next call fails and the new flow takes over.
func (m *Manager) Open(key Key) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.active[key]; ok {
		logger.WarnC("session", "replacing active session "+old.ID)
		old.closeLocked()
	}

	s := &Session{
		ID:    uuid.NewString(),
		Key:   key,
		inbox: make(chan bus.InboundMessage, 4),
		done:  make(chan struct{}),
		mgr:   m,
	}
	m.active[key] = s
	return s
}

// Deliver routes an inbound message to the active session for its key.
// Returns false when no session is waiting, so the caller dispatches the
// message as a fresh command instead.
func (m *Manager) Deliver(msg bus.InboundMessage) bool {
	m.mu.Lock()
	s, ok := m.active[KeyOf(msg)]
	m.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case s.inbox <- msg:
		return true
	case <-s.done:
		return false
	}
}

// Active reports whether a session currently exists for key.
func (m *Manager) Active(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[key]
	return ok
}

// Close tears the session down and releases its key. Safe to call more than
// once; a session replaced by a newer one for the same key is not removed.
func (s *Session) Close() {
	s.mgr.mu.Lock()
	defer s.mgr.mu.Unlock()
	if cur, ok := s.mgr.active[s.Key]; ok && cur == s {
		delete(s.mgr.active, s.Key)
	}
	s.once.Do(func() { close(s.done) })
}

// closeLocked is Open's replacement path; the manager lock is already held.
func (s *Session) closeLocked() {
	if cur, ok := s.mgr.active[s.Key]; ok && cur == s {
		delete(s.mgr.active, s.Key)
	}
	s.once.Do(func() { close(s.done) })
}

// Next blocks until the next message for this session arrives, the wait
// expires, the session is closed, or ctx is cancelled. Exactly three
// non-error-free outcomes exist: a message, SessionTimeout, or cancellation.
//
// Handlers that reject a reply simply call Next again: each call arms a fresh
// deadline, which also gives renewable-timeout sessions their renewal.
func (s *Session) Next(ctx context.Context, wait time.Duration) (bus.InboundMessage, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case msg := <-s.inbox:
		return msg, nil
	case <-timer.C:
		return bus.InboundMessage{}, apierr.New(apierr.SessionTimeout)
	case <-s.done:
		return bus.InboundMessage{}, context.Canceled
	case <-ctx.Done():
		return bus.InboundMessage{}, ctx.Err()
	}
}
