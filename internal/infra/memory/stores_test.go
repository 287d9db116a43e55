package memory

import (
	"context"
	"errors"
	"testing"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

func TestParticipantUpsertPreservesScore(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	p := domain.Participant{UserID: "u1", DisplayName: "Ada", Kind: domain.KindLive}
	if err := store.Upsert(ctx, "ROOM", p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := store.AddScore(ctx, "ROOM", "u1", domain.KindLive, 42); err != nil {
		t.Fatalf("add score: %v", err)
	}

	// A reconnect upsert carries zero score; the stored score must survive.
	p.DisplayName = "Ada Prime"
	if err := store.Upsert(ctx, "ROOM", p); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, err := store.Get(ctx, "ROOM", "u1", domain.KindLive)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 42 || got.DisplayName != "Ada Prime" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestParticipantKindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	for _, kind := range []domain.ParticipationKind{domain.KindLive, domain.KindDeferred} {
		if err := store.Upsert(ctx, "ROOM", domain.Participant{UserID: "u1", Kind: kind}); err != nil {
			t.Fatalf("upsert %s: %v", kind, err)
		}
	}
	if _, err := store.AddScore(ctx, "ROOM", "u1", domain.KindLive, 100); err != nil {
		t.Fatalf("add: %v", err)
	}
	deferred, err := store.Get(ctx, "ROOM", "u1", domain.KindDeferred)
	if err != nil {
		t.Fatalf("get deferred: %v", err)
	}
	if deferred.Score != 0 {
		t.Fatalf("live score leaked into deferred record: %d", deferred.Score)
	}
}

func TestSetBestDeferredScoreIsMonotone(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()
	if err := store.Upsert(ctx, "ROOM", domain.Participant{UserID: "u1", Kind: domain.KindDeferred}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	improved, err := store.SetBestDeferredScore(ctx, "ROOM", "u1", 300)
	if err != nil || !improved {
		t.Fatalf("expected improvement, got improved=%v err=%v", improved, err)
	}
	improved, err = store.SetBestDeferredScore(ctx, "ROOM", "u1", 150)
	if err != nil || improved {
		t.Fatalf("lower score must not improve, got improved=%v err=%v", improved, err)
	}
	improved, err = store.SetBestDeferredScore(ctx, "ROOM", "u1", 500)
	if err != nil || !improved {
		t.Fatalf("higher score must improve, got improved=%v err=%v", improved, err)
	}
	p, _ := store.Get(ctx, "ROOM", "u1", domain.KindDeferred)
	if p.Score != 500 {
		t.Fatalf("expected 500, got %d", p.Score)
	}
}

func TestRankingJoinRankStable(t *testing.T) {
	ctx := context.Background()
	store := NewRankingStore()

	for i, u := range []string{"u1", "u2", "u3"} {
		order, already, err := store.JoinRank(ctx, "ROOM", u)
		if err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
		if already || order != i+1 {
			t.Fatalf("%s: expected fresh order %d, got order=%d already=%v", u, i+1, order, already)
		}
	}

	order, already, err := store.JoinRank(ctx, "ROOM", "u2")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if !already || order != 2 {
		t.Fatalf("expected stable order 2, got order=%d already=%v", order, already)
	}
}

func TestAnswerStoreAttemptNamespacing(t *testing.T) {
	ctx := context.Background()
	store := NewAnswerStore()

	live := app.AnswerKey{AccessCode: "ROOM", QuestionUID: "q1", UserID: "u1"}
	attempt1 := app.AnswerKey{AccessCode: "ROOM", QuestionUID: "q1", UserID: "u1", Attempt: 1}
	if err := store.Put(ctx, live, domain.AnswerRecord{UserID: "u1", Score: 100}); err != nil {
		t.Fatalf("put live: %v", err)
	}
	if err := store.Put(ctx, attempt1, domain.AnswerRecord{UserID: "u1", Score: 50}); err != nil {
		t.Fatalf("put attempt: %v", err)
	}

	got, ok, err := store.Get(ctx, attempt1)
	if err != nil || !ok || got.Score != 50 {
		t.Fatalf("attempt record wrong: ok=%v err=%v rec=%+v", ok, err, got)
	}

	if err := store.ClearAttempt(ctx, "ROOM", "u1", 1, []string{"q1"}); err != nil {
		t.Fatalf("clear attempt: %v", err)
	}
	if _, ok, _ := store.Get(ctx, attempt1); ok {
		t.Fatal("attempt record survived clear")
	}
	if _, ok, _ := store.Get(ctx, live); !ok {
		t.Fatal("live record lost by attempt clear")
	}

	if err := store.ClearQuestion(ctx, "ROOM", "q1"); err != nil {
		t.Fatalf("clear question: %v", err)
	}
	if _, ok, _ := store.Get(ctx, live); ok {
		t.Fatal("live record survived question clear")
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Get(ctx, "ROOM"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	session := domain.Session{AccessCode: "ROOM", QuizID: "quiz-1", Status: domain.StatusPending, CurrentQuestion: -1}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "ROOM")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuizID != "quiz-1" || got.CurrentQuestion != -1 {
		t.Fatalf("unexpected session: %+v", got)
	}
	if err := store.Delete(ctx, "ROOM"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "ROOM"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}
