package memory

import (
	"sync"

	"game-session-service/internal/app"
)

type replayKey struct {
	accessCode string
	userID     string
}

// ReplayRegistry is the in-process implementation of app.ReplayRegistry.
type ReplayRegistry struct {
	mu       sync.RWMutex
	sessions map[replayKey]*app.ReplaySession
}

func NewReplayRegistry() *ReplayRegistry {
	return &ReplayRegistry{
		sessions: make(map[replayKey]*app.ReplaySession),
	}
}

func (r *ReplayRegistry) Has(accessCode, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[replayKey{accessCode, userID}]
	return ok
}

func (r *ReplayRegistry) Get(accessCode, userID string) (*app.ReplaySession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.sessions[replayKey{accessCode, userID}]
	return rs, ok
}

func (r *ReplayRegistry) Set(accessCode, userID string, rs *app.ReplaySession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[replayKey{accessCode, userID}] = rs
}

func (r *ReplayRegistry) Remove(accessCode, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, replayKey{accessCode, userID})
}
