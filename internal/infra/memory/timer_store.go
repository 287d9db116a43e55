package memory

import (
	"context"
	"sync"

	"game-session-service/internal/domain"
)

// TimerStore is an in-memory implementation of app.TimerStore.
type TimerStore struct {
	mu     sync.RWMutex
	timers map[domain.TimerKey]domain.TimerState
}

func NewTimerStore() *TimerStore {
	return &TimerStore{
		timers: make(map[domain.TimerKey]domain.TimerState),
	}
}

func (s *TimerStore) Get(_ context.Context, key domain.TimerKey) (domain.TimerState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.timers[key]
	return state, ok, nil
}

func (s *TimerStore) Set(_ context.Context, key domain.TimerKey, state domain.TimerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[key] = state
	return nil
}

func (s *TimerStore) Delete(_ context.Context, key domain.TimerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, key)
	return nil
}
