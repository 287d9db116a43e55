package memory

import (
	"context"
	"sync"

	"game-session-service/internal/domain"
)

type participantKey struct {
	accessCode string
	userID     string
	kind       domain.ParticipationKind
}

// ParticipantStore is an in-memory implementation of app.ParticipantStore.
// All score mutations run under one mutex, which stands in for the storage
// layer's atomic primitives in a single-instance deployment.
type ParticipantStore struct {
	mu      sync.Mutex
	records map[participantKey]*domain.Participant
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{
		records: make(map[participantKey]*domain.Participant),
	}
}

func (s *ParticipantStore) Get(_ context.Context, accessCode, userID string, kind domain.ParticipationKind) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[participantKey{accessCode, userID, kind}]
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	return *p, nil
}

func (s *ParticipantStore) Upsert(_ context.Context, accessCode string, p domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := participantKey{accessCode, p.UserID, p.Kind}
	if existing, ok := s.records[key]; ok {
		existing.DisplayName = p.DisplayName
		existing.JoinOrder = p.JoinOrder
		return nil
	}
	stored := p
	s.records[key] = &stored
	return nil
}

func (s *ParticipantStore) List(_ context.Context, accessCode string) ([]domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Participant, 0)
	for key, p := range s.records {
		if key.accessCode == accessCode {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *ParticipantStore) AddScore(_ context.Context, accessCode, userID string, kind domain.ParticipationKind, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[participantKey{accessCode, userID, kind}]
	if !ok {
		return 0, domain.ErrParticipantNotFound
	}
	p.Score += delta
	return p.Score, nil
}

func (s *ParticipantStore) SetScore(_ context.Context, accessCode, userID string, kind domain.ParticipationKind, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[participantKey{accessCode, userID, kind}]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	p.Score = score
	return nil
}

func (s *ParticipantStore) SetBestDeferredScore(_ context.Context, accessCode, userID string, score int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[participantKey{accessCode, userID, domain.KindDeferred}]
	if !ok {
		return false, domain.ErrParticipantNotFound
	}
	if score <= p.Score {
		return false, nil
	}
	p.Score = score
	return true, nil
}

func (s *ParticipantStore) IncrementAttempt(_ context.Context, accessCode, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[participantKey{accessCode, userID, domain.KindDeferred}]
	if !ok {
		return 0, domain.ErrParticipantNotFound
	}
	p.AttemptCount++
	return p.AttemptCount, nil
}
