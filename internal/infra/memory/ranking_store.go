package memory

import (
	"context"
	"sync"

	"game-session-service/internal/domain"
)

type rankingState struct {
	scores    map[string]int
	joinOrder map[string]int
	joinSeq   int
	snapshot  *domain.Leaderboard
}

// RankingStore is an in-memory implementation of app.RankingStore. The join
// ledger is append-only: a user's position is assigned once under the mutex
// and never recomputed.
type RankingStore struct {
	mu       sync.Mutex
	sessions map[string]*rankingState
}

func NewRankingStore() *RankingStore {
	return &RankingStore{
		sessions: make(map[string]*rankingState),
	}
}

func (s *RankingStore) state(accessCode string) *rankingState {
	st, ok := s.sessions[accessCode]
	if !ok {
		st = &rankingState{
			scores:    make(map[string]int),
			joinOrder: make(map[string]int),
		}
		s.sessions[accessCode] = st
	}
	return st
}

func (s *RankingStore) UpdateScore(_ context.Context, accessCode, userID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(accessCode).scores[userID] = score
	return nil
}

func (s *RankingStore) Scores(_ context.Context, accessCode string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(accessCode)
	out := make(map[string]int, len(st.scores))
	for k, v := range st.scores {
		out[k] = v
	}
	return out, nil
}

func (s *RankingStore) JoinRank(_ context.Context, accessCode, userID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(accessCode)
	if order, ok := st.joinOrder[userID]; ok {
		return order, true, nil
	}
	st.joinSeq++
	st.joinOrder[userID] = st.joinSeq
	return st.joinSeq, false, nil
}

func (s *RankingStore) SaveSnapshot(_ context.Context, accessCode string, lb domain.Leaderboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := lb
	copied.Entries = append([]domain.LeaderboardEntry(nil), lb.Entries...)
	s.state(accessCode).snapshot = &copied
	return nil
}

func (s *RankingStore) Snapshot(_ context.Context, accessCode string) (domain.Leaderboard, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(accessCode)
	if st.snapshot == nil {
		return domain.Leaderboard{}, false, nil
	}
	return *st.snapshot, true, nil
}

func (s *RankingStore) Clear(_ context.Context, accessCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, accessCode)
	return nil
}
