package memory

import (
	"context"
	"sync"

	"game-session-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore, used when
// no shared store is configured (single-instance deployments and tests).
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
	}
}

func (s *SessionStore) Get(_ context.Context, accessCode string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[accessCode]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.AccessCode] = session
	return nil
}

func (s *SessionStore) Delete(_ context.Context, accessCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, accessCode)
	return nil
}
