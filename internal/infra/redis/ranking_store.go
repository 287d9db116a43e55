package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"game-session-service/internal/domain"
)

// RankingStore keeps the live ranking in a sorted set, the join-order ledger
// in an INCR sequence plus a HSETNX hash, and the revealed snapshot as a
// plain JSON value. Membership in the ledger is a conditional write, so a
// duplicate join event can never be granted a second position.
type RankingStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingStore(client *redis.Client, ttl time.Duration) *RankingStore {
	return &RankingStore{client: client, ttl: ttl}
}

func (s *RankingStore) UpdateScore(ctx context.Context, accessCode, userID string, score int) error {
	key := rankingKey(accessCode)
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: userID})
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update ranking: %w", err)
	}
	return nil
}

func (s *RankingStore) Scores(ctx context.Context, accessCode string) (map[string]int, error) {
	members, err := s.client.ZRangeWithScores(ctx, rankingKey(accessCode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load ranking: %w", err)
	}
	out := make(map[string]int, len(members))
	for _, m := range members {
		user, ok := m.Member.(string)
		if !ok {
			continue
		}
		out[user] = int(m.Score)
	}
	return out, nil
}

func (s *RankingStore) JoinRank(ctx context.Context, accessCode, userID string) (int, bool, error) {
	orderKey := joinOrderKey(accessCode)

	// Fast path: already a member.
	if raw, err := s.client.HGet(ctx, orderKey, userID).Result(); err == nil {
		order, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, false, fmt.Errorf("corrupt join ledger entry: %w", convErr)
		}
		return order, true, nil
	} else if err != redis.Nil {
		return 0, false, fmt.Errorf("read join ledger: %w", err)
	}

	seq, err := s.client.Incr(ctx, joinSeqKey(accessCode)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("advance join sequence: %w", err)
	}
	set, err := s.client.HSetNX(ctx, orderKey, userID, strconv.FormatInt(seq, 10)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("append join ledger: %w", err)
	}
	if !set {
		// Lost the race to a concurrent join of the same user; the winner's
		// position is the frozen one.
		raw, err := s.client.HGet(ctx, orderKey, userID).Result()
		if err != nil {
			return 0, false, fmt.Errorf("read join ledger after race: %w", err)
		}
		order, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, false, fmt.Errorf("corrupt join ledger entry: %w", convErr)
		}
		return order, true, nil
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, orderKey, s.ttl).Err()
		_ = s.client.Expire(ctx, joinSeqKey(accessCode), s.ttl).Err()
	}
	return int(seq), false, nil
}

func (s *RankingStore) SaveSnapshot(ctx context.Context, accessCode string, lb domain.Leaderboard) error {
	raw, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, snapshotKey(accessCode), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (s *RankingStore) Snapshot(ctx context.Context, accessCode string) (domain.Leaderboard, bool, error) {
	raw, err := s.client.Get(ctx, snapshotKey(accessCode)).Bytes()
	if err == redis.Nil {
		return domain.Leaderboard{}, false, nil
	}
	if err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return domain.Leaderboard{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return lb, true, nil
}

func (s *RankingStore) Clear(ctx context.Context, accessCode string) error {
	keys := []string{
		rankingKey(accessCode),
		joinSeqKey(accessCode),
		joinOrderKey(accessCode),
		snapshotKey(accessCode),
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("clear ranking state: %w", err)
	}
	return nil
}
