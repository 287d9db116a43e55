package app_test

import (
	"context"
	"errors"
	"testing"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

func TestAdvanceQuestionActivatesPendingSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	if _, err := f.service.Orchestrator.CreateSession(ctx, "ROOM", "quiz-1", domain.ModeLive); err != nil {
		t.Fatalf("create: %v", err)
	}

	session, err := f.service.Orchestrator.AdvanceQuestion(ctx, "ROOM", 0)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if session.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", session.Status)
	}
	if session.CurrentQuestionUID() != "q1" {
		t.Fatalf("expected q1 current, got %q", session.CurrentQuestionUID())
	}
	if session.AnswersLocked {
		t.Fatal("a fresh question must start unlocked")
	}
}

func TestAdvanceQuestionIndexOutOfRange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	if _, err := f.service.Orchestrator.CreateSession(ctx, "ROOM", "quiz-1", domain.ModeLive); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.service.Orchestrator.AdvanceQuestion(ctx, "ROOM", 7); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := f.service.Orchestrator.AdvanceQuestion(ctx, "ROOM", -1); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound for negative index, got %v", err)
	}
}

func TestAdvanceQuestionAudiencePayloadsDiffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	if _, err := f.service.Orchestrator.CreateSession(ctx, "ROOM", "quiz-1", domain.ModeLive); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.Orchestrator.AdvanceQuestion(ctx, "ROOM", 0); err != nil {
		t.Fatalf("advance: %v", err)
	}

	questionOf := func(audience app.Audience) domain.Question {
		events := f.broadcast.byType(audience, "question")
		if len(events) != 1 {
			t.Fatalf("%s: expected one question event, got %d", audience, len(events))
		}
		payload, ok := events[0].Payload.(map[string]any)
		if !ok {
			t.Fatalf("%s: unexpected payload %T", audience, events[0].Payload)
		}
		question, ok := payload["question"].(domain.Question)
		if !ok {
			t.Fatalf("%s: missing question in payload", audience)
		}
		return question
	}

	// Only the moderator dashboard may see the correct answers.
	if q := questionOf(app.AudienceParticipants); q.CorrectOptions != nil {
		t.Fatal("participants received correct answers")
	}
	if q := questionOf(app.AudienceProjection); q.CorrectOptions != nil {
		t.Fatal("projection received correct answers")
	}
	if q := questionOf(app.AudienceDashboard); q.CorrectOptions == nil {
		t.Fatal("dashboard missing correct answers")
	}
}

func TestLockUnlockRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	f.startLiveSession(t, "ROOM", "u1")

	if err := f.service.Orchestrator.LockAnswers(ctx, "ROOM"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	session, _ := f.service.Orchestrator.Session(ctx, "ROOM")
	if !session.AnswersLocked {
		t.Fatal("expected locked")
	}

	if err := f.service.Orchestrator.UnlockAnswers(ctx, "ROOM"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, "ROOM", "u1", domain.AnswerSubmission{
		QuestionUID: "q1",
		Value:       domain.AnswerValue{Selected: []int{1}},
	}); err != nil {
		t.Fatalf("submit after unlock: %v", err)
	}
}

func TestJoinReconnectKeepsOrderAndScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, app.Config{Scoring: app.ScoringConfig{BasePool: 1000, DecayAlpha: 0.3}, JoinBonus: 10})
	if _, err := f.service.Orchestrator.CreateSession(ctx, "ROOM", "quiz-1", domain.ModeLive); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := f.service.Orchestrator.Join(ctx, "ROOM", "u1", "Ada")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if first.Bonus != 10 || first.Participant.JoinOrder != 1 {
		t.Fatalf("unexpected first join: bonus=%d order=%d", first.Bonus, first.Participant.JoinOrder)
	}

	again, err := f.service.Orchestrator.Join(ctx, "ROOM", "u1", "Ada Prime")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.Bonus != 0 {
		t.Fatalf("reconnect earned a bonus: %d", again.Bonus)
	}
	if again.Participant.JoinOrder != 1 {
		t.Fatalf("join order drifted: %d", again.Participant.JoinOrder)
	}
	if again.Participant.DisplayName != "Ada Prime" {
		t.Fatalf("display name not refreshed: %s", again.Participant.DisplayName)
	}
	if again.Participant.Score != first.Participant.Score {
		t.Fatalf("reconnect changed score: %d vs %d", again.Participant.Score, first.Participant.Score)
	}
}

func TestStopTimerRejectsSubmissionsForGood(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	f.startLiveSession(t, "ROOM", "u1")

	state, err := f.service.Orchestrator.StopTimer(ctx, "ROOM")
	if err != nil {
		t.Fatalf("stop timer: %v", err)
	}
	if state.Status != domain.TimerStopped {
		t.Fatalf("expected stopped timer, got %+v", state)
	}

	if _, err := f.service.SubmitAnswer(ctx, "ROOM", "u1", domain.AnswerSubmission{
		QuestionUID: "q1",
		Value:       domain.AnswerValue{Selected: []int{1}},
	}); !errors.Is(err, domain.ErrTimerStopped) {
		t.Fatalf("expected ErrTimerStopped, got %v", err)
	}

	// A stopped timer never resumes.
	state, err = f.service.Orchestrator.ResumeTimer(ctx, "ROOM")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if state.Status != domain.TimerStopped {
		t.Fatalf("stopped timer resumed: %+v", state)
	}
}

func TestJoinSendsTimerToLateJoiner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	f.startLiveSession(t, "ROOM", "u1")

	late, err := f.service.Orchestrator.Join(ctx, "ROOM", "u2", "Bob")
	if err != nil {
		t.Fatalf("late join: %v", err)
	}
	if late.Timer.Status != domain.TimerRunning {
		t.Fatalf("late joiner should see the running timer, got %+v", late.Timer)
	}
	if late.Session.CurrentQuestionUID() != "q1" {
		t.Fatalf("late joiner missing current question: %+v", late.Session)
	}
}

func TestEndSessionIsIdempotentAndFinal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	f.startLiveSession(t, "ROOM", "u1")

	lb, err := f.service.Orchestrator.EndSession(ctx, "ROOM")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(lb.Entries) != 1 {
		t.Fatalf("expected final leaderboard with one entry, got %+v", lb)
	}

	// Ending again just returns the stored snapshot.
	again, err := f.service.Orchestrator.EndSession(ctx, "ROOM")
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if again.SnapshotID != lb.SnapshotID {
		t.Fatalf("second end regenerated the snapshot: %s vs %s", again.SnapshotID, lb.SnapshotID)
	}

	// No further live submissions.
	if _, err := f.service.SubmitAnswer(ctx, "ROOM", "u1", domain.AnswerSubmission{
		QuestionUID: "q1",
		Value:       domain.AnswerValue{Selected: []int{1}},
	}); !errors.Is(err, domain.ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive after end, got %v", err)
	}

	ended := f.broadcast.byType(app.AudienceParticipants, "session_ended")
	if len(ended) != 1 {
		t.Fatalf("expected one session_ended for participants, got %d", len(ended))
	}
}

func TestArchiveSessionClearsEphemeralState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	f.startLiveSession(t, "ROOM", "u1")

	// Archiving an active session is refused.
	if err := f.service.Orchestrator.ArchiveSession(ctx, "ROOM"); !errors.Is(err, domain.ErrGameNotActive) {
		t.Fatalf("expected ErrGameNotActive, got %v", err)
	}

	if _, err := f.service.Orchestrator.EndSession(ctx, "ROOM"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := f.service.Orchestrator.ArchiveSession(ctx, "ROOM"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := f.service.Orchestrator.Session(ctx, "ROOM"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after archive, got %v", err)
	}
}

func TestAnswerStatsAggregation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, scoringConfig())
	f.startLiveSession(t, "ROOM", "u1")
	if _, err := f.service.Orchestrator.Join(ctx, "ROOM", "u2", "Bob"); err != nil {
		t.Fatalf("join u2: %v", err)
	}

	if _, err := f.service.SubmitAnswer(ctx, "ROOM", "u1", domain.AnswerSubmission{
		QuestionUID: "q1", Value: domain.AnswerValue{Selected: []int{1}},
	}); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, "ROOM", "u2", domain.AnswerSubmission{
		QuestionUID: "q1", Value: domain.AnswerValue{Selected: []int{0}},
	}); err != nil {
		t.Fatalf("submit u2: %v", err)
	}

	stats, err := f.service.Orchestrator.AnswerStats(ctx, "ROOM", "q1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAnswers != 2 || stats.CorrectCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OptionCounts[0] != 1 || stats.OptionCounts[1] != 1 {
		t.Fatalf("unexpected option counts: %+v", stats.OptionCounts)
	}
}
