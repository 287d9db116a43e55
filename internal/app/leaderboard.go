package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"game-session-service/internal/domain"
)

// LeaderboardEngine computes the live ranking and manages the revealed
// snapshot. The snapshot is the only ranking non-moderator audiences ever see
// during an active question: it lags the live ranking and is refreshed only at
// explicit reveal points, so participants cannot infer each other's
// in-progress scores.
type LeaderboardEngine struct {
	participants ParticipantStore
	ranking      RankingStore
	bonusBase    int
	clock        clockwork.Clock
}

func NewLeaderboardEngine(participants ParticipantStore, ranking RankingStore, bonusBase int, clock clockwork.Clock) *LeaderboardEngine {
	if bonusBase < 1 {
		bonusBase = 1
	}
	return &LeaderboardEngine{
		participants: participants,
		ranking:      ranking,
		bonusBase:    bonusBase,
		clock:        clock,
	}
}

// LiveRanking computes the current authoritative ranking. Order: score
// descending, then join order ascending, then display name ascending. Both
// tie-break keys are frozen at first join, so repeated computations of the
// same input are reproducible bit for bit.
func (e *LeaderboardEngine) LiveRanking(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	participants, err := e.participants.List(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("list participants: %w", err)
	}
	scores, err := e.ranking.Scores(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("load ranking scores: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	joinOrder := make(map[string]int, len(participants))
	for _, p := range participants {
		score := p.Score
		if p.Kind == domain.KindLive {
			// The ranking structure is updated in lock-step with scoring; prefer
			// it when present so multi-instance reads agree.
			if s, ok := scores[p.UserID]; ok {
				score = s
			}
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:       p.UserID,
			DisplayName:  p.DisplayName,
			Score:        score,
			Kind:         p.Kind,
			AttemptCount: p.AttemptCount,
		})
		joinOrder[p.UserID+string(p.Kind)] = p.JoinOrder
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		oi := joinOrder[entries[i].UserID+string(entries[i].Kind)]
		oj := joinOrder[entries[j].UserID+string(entries[j].Kind)]
		if oi != oj {
			return oi < oj
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return domain.Leaderboard{
		AccessCode:  accessCode,
		Entries:     entries,
		GeneratedAt: e.clock.Now(),
	}, nil
}

// RefreshSnapshot recomputes the live ranking and stores it as the revealed
// snapshot. Called only at reveal points: a user joining, a question's scoring
// window closing, or an explicit moderator reveal.
func (e *LeaderboardEngine) RefreshSnapshot(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	lb, err := e.LiveRanking(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb.SnapshotID = uuid.NewString()
	if err := e.ranking.SaveSnapshot(ctx, accessCode, lb); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("save snapshot: %w", err)
	}
	return lb, nil
}

// Snapshot returns the last revealed snapshot. An empty leaderboard, not an
// error, when nothing has been revealed yet.
func (e *LeaderboardEngine) Snapshot(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	lb, ok, err := e.ranking.Snapshot(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return domain.Leaderboard{AccessCode: accessCode, GeneratedAt: e.clock.Now()}, nil
	}
	return lb, nil
}

// AssignJoinBonus grants the one-time join-order bonus. The join-order ledger
// is the idempotency boundary: membership is recorded with a conditional
// append, so reconnects and duplicate join events return 0 and never inflate
// the score.
func (e *LeaderboardEngine) AssignJoinBonus(ctx context.Context, accessCode, userID string) (int, error) {
	order, already, err := e.ranking.JoinRank(ctx, accessCode, userID)
	if err != nil {
		return 0, fmt.Errorf("join ledger: %w", err)
	}
	if already {
		return 0, nil
	}
	bonus := e.bonusBase - (order - 1)
	if bonus < 1 {
		bonus = 1
	}
	total, err := e.participants.AddScore(ctx, accessCode, userID, domain.KindLive, bonus)
	if err != nil {
		return 0, fmt.Errorf("apply join bonus: %w", err)
	}
	if err := e.ranking.UpdateScore(ctx, accessCode, userID, total); err != nil {
		return 0, fmt.Errorf("update ranking: %w", err)
	}
	return bonus, nil
}

// JoinOrder returns the frozen join position for a user, assigning one if the
// user is not in the ledger yet.
func (e *LeaderboardEngine) JoinOrder(ctx context.Context, accessCode, userID string) (int, error) {
	order, _, err := e.ranking.JoinRank(ctx, accessCode, userID)
	if err != nil {
		return 0, fmt.Errorf("join ledger: %w", err)
	}
	return order, nil
}
