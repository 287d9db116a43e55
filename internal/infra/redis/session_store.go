package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"game-session-service/internal/domain"
)

// SessionStore keeps the mutable session record in redis so every server
// instance sees the same lifecycle state. Records carry a TTL as the bounded
// retention window; archival deletes them explicitly.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context, accessCode string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(accessCode)).Bytes()
	if err == redis.Nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.AccessCode), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, accessCode string) error {
	if err := s.client.Del(ctx, sessionKey(accessCode)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
