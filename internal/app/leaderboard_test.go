package app_test

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
	"game-session-service/internal/infra/memory"
)

func newLeaderboardEngine(bonusBase int) (*app.LeaderboardEngine, app.ParticipantStore, app.RankingStore) {
	participants := memory.NewParticipantStore()
	ranking := memory.NewRankingStore()
	engine := app.NewLeaderboardEngine(participants, ranking, bonusBase, clockwork.NewFakeClock())
	return engine, participants, ranking
}

func upsertLive(t *testing.T, store app.ParticipantStore, accessCode, userID, name string) {
	t.Helper()
	err := store.Upsert(context.Background(), accessCode, domain.Participant{
		UserID:      userID,
		DisplayName: name,
		Kind:        domain.KindLive,
	})
	if err != nil {
		t.Fatalf("upsert %s: %v", userID, err)
	}
}

func TestJoinBonusDecreasesWithOrder(t *testing.T) {
	ctx := context.Background()
	engine, participants, _ := newLeaderboardEngine(10)

	upsertLive(t, participants, "ROOM", "u1", "Ada")
	upsertLive(t, participants, "ROOM", "u2", "Bob")
	upsertLive(t, participants, "ROOM", "u3", "Cleo")

	for i, tc := range []struct {
		userID string
		want   int
	}{
		{"u1", 10},
		{"u2", 9},
		{"u3", 8},
	} {
		bonus, err := engine.AssignJoinBonus(ctx, "ROOM", tc.userID)
		if err != nil {
			t.Fatalf("bonus %d: %v", i, err)
		}
		if bonus != tc.want {
			t.Fatalf("joiner %d: expected bonus %d, got %d", i+1, tc.want, bonus)
		}
	}

	// A reconnect never earns a second bonus.
	bonus, err := engine.AssignJoinBonus(ctx, "ROOM", "u1")
	if err != nil {
		t.Fatalf("rejoin bonus: %v", err)
	}
	if bonus != 0 {
		t.Fatalf("expected 0 on rejoin, got %d", bonus)
	}
}

func TestJoinBonusFloorsAtOne(t *testing.T) {
	ctx := context.Background()
	engine, participants, _ := newLeaderboardEngine(2)

	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		upsertLive(t, participants, "ROOM", u, u)
		bonus, err := engine.AssignJoinBonus(ctx, "ROOM", u)
		if err != nil {
			t.Fatalf("bonus %s: %v", u, err)
		}
		if bonus < 1 {
			t.Fatalf("bonus for %s below floor: %d", u, bonus)
		}
	}
}

func TestLiveRankingTieBreakIsDeterministic(t *testing.T) {
	ctx := context.Background()
	engine, participants, _ := newLeaderboardEngine(1)

	upsertLive(t, participants, "ROOM", "u1", "Zed")
	upsertLive(t, participants, "ROOM", "u2", "Ada")
	upsertLive(t, participants, "ROOM", "u3", "Mia")
	for _, u := range []string{"u1", "u2", "u3"} {
		if _, err := engine.AssignJoinBonus(ctx, "ROOM", u); err != nil {
			t.Fatalf("bonus: %v", err)
		}
	}
	var first []string
	for run := 0; run < 5; run++ {
		lb, err := engine.LiveRanking(ctx, "ROOM")
		if err != nil {
			t.Fatalf("ranking: %v", err)
		}
		order := make([]string, 0, len(lb.Entries))
		for _, e := range lb.Entries {
			order = append(order, e.UserID)
		}
		if first == nil {
			first = order
			continue
		}
		for i := range first {
			if order[i] != first[i] {
				t.Fatalf("run %d: order changed from %v to %v", run, first, order)
			}
		}
	}

	// Equal scores: join order decides, not display name.
	lb, _ := engine.LiveRanking(ctx, "ROOM")
	if lb.Entries[0].UserID != "u1" || lb.Entries[1].UserID != "u2" || lb.Entries[2].UserID != "u3" {
		t.Fatalf("expected join-order tie break, got %+v", lb.Entries)
	}
	for i, e := range lb.Entries {
		if e.Rank != i+1 {
			t.Fatalf("ranks not dense: %+v", lb.Entries)
		}
	}
}

func TestSnapshotLagsLiveRanking(t *testing.T) {
	ctx := context.Background()
	engine, participants, _ := newLeaderboardEngine(1)

	upsertLive(t, participants, "ROOM", "u1", "Ada")
	if _, err := engine.AssignJoinBonus(ctx, "ROOM", "u1"); err != nil {
		t.Fatalf("bonus: %v", err)
	}

	snap, err := engine.RefreshSnapshot(ctx, "ROOM")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.SnapshotID == "" {
		t.Fatal("expected snapshot id")
	}

	// Score moves after the reveal; the snapshot must not.
	if _, err := participants.AddScore(ctx, "ROOM", "u1", domain.KindLive, 100); err != nil {
		t.Fatalf("add score: %v", err)
	}
	stored, err := engine.Snapshot(ctx, "ROOM")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if stored.SnapshotID != snap.SnapshotID {
		t.Fatalf("snapshot replaced without a reveal: %s vs %s", stored.SnapshotID, snap.SnapshotID)
	}
	if stored.Entries[0].Score != snap.Entries[0].Score {
		t.Fatalf("snapshot score drifted: %d vs %d", stored.Entries[0].Score, snap.Entries[0].Score)
	}

	live, err := engine.LiveRanking(ctx, "ROOM")
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if live.Entries[0].Score == stored.Entries[0].Score {
		t.Fatal("expected live ranking ahead of snapshot")
	}
}

func TestSnapshotEmptyBeforeFirstReveal(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newLeaderboardEngine(1)

	lb, err := engine.Snapshot(ctx, "ROOM")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(lb.Entries) != 0 || lb.SnapshotID != "" {
		t.Fatalf("expected empty snapshot, got %+v", lb)
	}
}
