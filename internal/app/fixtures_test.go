package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
	"game-session-service/internal/infra/memory"
)

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{
				UID:            "q1",
				Kind:           domain.QuestionSingleChoice,
				Prompt:         "What is 2 + 2?",
				Options:        []string{"3", "4", "5"},
				CorrectOptions: []bool{false, true, false},
				TimeLimitMs:    30000,
			},
			{
				UID:            "q2",
				Kind:           domain.QuestionMultiChoice,
				Prompt:         "Which are prime?",
				Options:        []string{"2", "4", "5", "9"},
				CorrectOptions: []bool{true, false, true, false},
				TimeLimitMs:    30000,
			},
		},
	}
}

type fixture struct {
	service   *app.GameService
	clock     *clockwork.FakeClock
	deps      app.Deps
	broadcast *recordingBroadcaster
}

func newFixture(t *testing.T, cfg app.Config) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	broadcast := newRecordingBroadcaster()
	loader := memory.NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": testQuiz()})
	deps := app.Deps{
		Sessions:     memory.NewSessionStore(),
		Participants: memory.NewParticipantStore(),
		Answers:      memory.NewAnswerStore(),
		Timers:       memory.NewTimerStore(),
		Ranking:      memory.NewRankingStore(),
		Registry:     memory.NewReplayRegistry(),
		Quizzes:      memory.NewQuizRepository(loader, time.Minute),
		Broadcaster:  broadcast,
		Clock:        clock,
	}
	return &fixture{
		service:   app.NewGameService(cfg, deps),
		clock:     clock,
		deps:      deps,
		broadcast: broadcast,
	}
}

// startLiveSession creates a live session, joins one user and advances to the
// first question. Returns the join-order bonus the user received.
func (f *fixture) startLiveSession(t *testing.T, accessCode, userID string) int {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.Orchestrator.CreateSession(ctx, accessCode, "quiz-1", domain.ModeLive); err != nil {
		t.Fatalf("create session: %v", err)
	}
	joined, err := f.service.Orchestrator.Join(ctx, accessCode, userID, "Player "+userID)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.Orchestrator.AdvanceQuestion(ctx, accessCode, 0); err != nil {
		t.Fatalf("advance: %v", err)
	}
	return joined.Bonus
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events map[app.Audience][]app.Event
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{events: make(map[app.Audience][]app.Event)}
}

func (r *recordingBroadcaster) Broadcast(accessCode string, audience app.Audience, event app.Event) {
	r.mu.Lock()
	r.events[audience] = append(r.events[audience], event)
	r.mu.Unlock()
}

func (r *recordingBroadcaster) byType(audience app.Audience, typ string) []app.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []app.Event
	for _, ev := range r.events[audience] {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
