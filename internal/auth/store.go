package auth

import (
	"context"
	"sync"
	"time"

	id "trash4cash/pkg/domain"
	dErrors "trash4cash/pkg/domain-errors"
)

// ErrNotFound is returned by stores when no session matches.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "session not found")

// TokenStore persists sessions.
//
// Error contract: Find returns ErrNotFound for unknown or evicted sessions;
// Delete of an unknown session is not an error.
type TokenStore interface {
	Save(ctx context.Context, s *Session) error
	Find(ctx context.Context, sessionID id.SessionID) (*Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}

// InMemoryTokenStore keeps sessions in process memory.
type InMemoryTokenStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
	now      func() time.Time
}

func NewInMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		sessions: make(map[id.SessionID]*Session),
		now:      time.Now,
	}
}

func (s *InMemoryTokenStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *InMemoryTokenStore) Find(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *InMemoryTokenStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *InMemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
