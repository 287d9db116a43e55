package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"game-session-service/internal/domain"
)

// TimerStore keeps canonical timer records in redis so elapsed time survives
// a process restart within the retention window.
type TimerStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTimerStore(client *redis.Client, ttl time.Duration) *TimerStore {
	return &TimerStore{client: client, ttl: ttl}
}

func (s *TimerStore) Get(ctx context.Context, key domain.TimerKey) (domain.TimerState, bool, error) {
	raw, err := s.client.Get(ctx, timerKey(key)).Bytes()
	if err == redis.Nil {
		return domain.TimerState{}, false, nil
	}
	if err != nil {
		return domain.TimerState{}, false, fmt.Errorf("load timer: %w", err)
	}
	var state domain.TimerState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.TimerState{}, false, fmt.Errorf("unmarshal timer: %w", err)
	}
	return state, true, nil
}

func (s *TimerStore) Set(ctx context.Context, key domain.TimerKey, state domain.TimerState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal timer: %w", err)
	}
	if err := s.client.Set(ctx, timerKey(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store timer: %w", err)
	}
	return nil
}

func (s *TimerStore) Delete(ctx context.Context, key domain.TimerKey) error {
	if err := s.client.Del(ctx, timerKey(key)).Err(); err != nil {
		return fmt.Errorf("delete timer: %w", err)
	}
	return nil
}
