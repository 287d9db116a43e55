package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

// AnswerStore keeps answer records in one hash per (question, attempt), field
// keyed by user. HSET replaces the field atomically, which is exactly the
// last-accepted-write-wins ordering the scoring engine needs.
type AnswerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerStore(client *redis.Client, ttl time.Duration) *AnswerStore {
	return &AnswerStore{client: client, ttl: ttl}
}

func (s *AnswerStore) Get(ctx context.Context, key app.AnswerKey) (domain.AnswerRecord, bool, error) {
	raw, err := s.client.HGet(ctx, answerHashKey(key), key.UserID).Bytes()
	if err == redis.Nil {
		return domain.AnswerRecord{}, false, nil
	}
	if err != nil {
		return domain.AnswerRecord{}, false, fmt.Errorf("load answer: %w", err)
	}
	var record domain.AnswerRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.AnswerRecord{}, false, fmt.Errorf("unmarshal answer: %w", err)
	}
	return record, true, nil
}

func (s *AnswerStore) Put(ctx context.Context, key app.AnswerKey, record domain.AnswerRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	hashKey := answerHashKey(key)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, hashKey, key.UserID, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, hashKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) ListQuestion(ctx context.Context, accessCode, questionUID string) ([]domain.AnswerRecord, error) {
	hashKey := answerHashKey(app.AnswerKey{AccessCode: accessCode, QuestionUID: questionUID})
	fields, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	out := make([]domain.AnswerRecord, 0, len(fields))
	for _, raw := range fields {
		var record domain.AnswerRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *AnswerStore) ListAttempt(ctx context.Context, accessCode, userID string, attempt int, questionUIDs []string) ([]domain.AnswerRecord, error) {
	out := make([]domain.AnswerRecord, 0, len(questionUIDs))
	for _, uid := range questionUIDs {
		key := app.AnswerKey{AccessCode: accessCode, QuestionUID: uid, UserID: userID, Attempt: attempt}
		record, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *AnswerStore) ClearQuestion(ctx context.Context, accessCode, questionUID string) error {
	hashKey := answerHashKey(app.AnswerKey{AccessCode: accessCode, QuestionUID: questionUID})
	if err := s.client.Del(ctx, hashKey).Err(); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return nil
}

func (s *AnswerStore) ClearAttempt(ctx context.Context, accessCode, userID string, attempt int, questionUIDs []string) error {
	pipe := s.client.Pipeline()
	for _, uid := range questionUIDs {
		key := app.AnswerKey{AccessCode: accessCode, QuestionUID: uid, UserID: userID, Attempt: attempt}
		pipe.HDel(ctx, answerHashKey(key), userID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear attempt answers: %w", err)
	}
	return nil
}
