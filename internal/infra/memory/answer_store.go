package memory

import (
	"context"
	"sync"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

// AnswerStore is an in-memory implementation of app.AnswerStore.
type AnswerStore struct {
	mu      sync.RWMutex
	records map[app.AnswerKey]domain.AnswerRecord
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		records: make(map[app.AnswerKey]domain.AnswerRecord),
	}
}

func (s *AnswerStore) Get(_ context.Context, key app.AnswerKey) (domain.AnswerRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	return record, ok, nil
}

func (s *AnswerStore) Put(_ context.Context, key app.AnswerKey, record domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record
	return nil
}

func (s *AnswerStore) ListQuestion(_ context.Context, accessCode, questionUID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerRecord, 0)
	for key, record := range s.records {
		if key.AccessCode == accessCode && key.QuestionUID == questionUID && key.Attempt == 0 {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *AnswerStore) ListAttempt(_ context.Context, accessCode, userID string, attempt int, questionUIDs []string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AnswerRecord, 0)
	for _, uid := range questionUIDs {
		key := app.AnswerKey{AccessCode: accessCode, QuestionUID: uid, UserID: userID, Attempt: attempt}
		if record, ok := s.records[key]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *AnswerStore) ClearQuestion(_ context.Context, accessCode, questionUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.records {
		if key.AccessCode == accessCode && key.QuestionUID == questionUID && key.Attempt == 0 {
			delete(s.records, key)
		}
	}
	return nil
}

func (s *AnswerStore) ClearAttempt(_ context.Context, accessCode, userID string, attempt int, questionUIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range questionUIDs {
		delete(s.records, app.AnswerKey{AccessCode: accessCode, QuestionUID: uid, UserID: userID, Attempt: attempt})
	}
	return nil
}
