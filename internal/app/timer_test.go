package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
	"game-session-service/internal/infra/memory"
)

func newTimerAuthority() (*app.TimerAuthority, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return app.NewTimerAuthority(memory.NewTimerStore(), clock), clock
}

func TestTimerElapsedWhileRunning(t *testing.T) {
	ctx := context.Background()
	timers, clock := newTimerAuthority()
	key := domain.TimerKey{AccessCode: "ROOM", QuestionUID: "q1"}

	if _, err := timers.Start(ctx, key, 10000); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(4 * time.Second)

	elapsed, err := timers.Elapsed(ctx, key)
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if elapsed != 4000 {
		t.Fatalf("expected 4000ms elapsed, got %d", elapsed)
	}
	remaining, err := timers.Remaining(ctx, key)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining != 6000 {
		t.Fatalf("expected 6000ms remaining, got %d", remaining)
	}
}

func TestTimerPauseFreezesElapsed(t *testing.T) {
	ctx := context.Background()
	timers, clock := newTimerAuthority()
	key := domain.TimerKey{AccessCode: "ROOM", QuestionUID: "q1"}

	if _, err := timers.Start(ctx, key, 10000); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(3 * time.Second)
	state, err := timers.Pause(ctx, key)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if state.Status != domain.TimerPaused || state.PlayedMs != 3000 {
		t.Fatalf("expected paused at 3000ms, got %+v", state)
	}

	// Time passing while paused must not count.
	clock.Advance(5 * time.Second)
	elapsed, _ := timers.Elapsed(ctx, key)
	if elapsed != 3000 {
		t.Fatalf("expected frozen 3000ms, got %d", elapsed)
	}

	if _, err := timers.Resume(ctx, key); err != nil {
		t.Fatalf("resume: %v", err)
	}
	clock.Advance(2 * time.Second)
	elapsed, _ = timers.Elapsed(ctx, key)
	if elapsed != 5000 {
		t.Fatalf("expected 5000ms after resume, got %d", elapsed)
	}
}

func TestTimerStartIsIdempotentWhileRunning(t *testing.T) {
	ctx := context.Background()
	timers, clock := newTimerAuthority()
	key := domain.TimerKey{AccessCode: "ROOM", QuestionUID: "q1"}

	if _, err := timers.Start(ctx, key, 10000); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(4 * time.Second)

	// A duplicate start event must not reset the window.
	if _, err := timers.Start(ctx, key, 10000); err != nil {
		t.Fatalf("restart: %v", err)
	}
	elapsed, _ := timers.Elapsed(ctx, key)
	if elapsed != 4000 {
		t.Fatalf("expected 4000ms after duplicate start, got %d", elapsed)
	}
}

func TestTimerElapsedClampedToDuration(t *testing.T) {
	ctx := context.Background()
	timers, clock := newTimerAuthority()
	key := domain.TimerKey{AccessCode: "ROOM", QuestionUID: "q1"}

	if _, err := timers.Start(ctx, key, 10000); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(30 * time.Second)

	elapsed, _ := timers.Elapsed(ctx, key)
	if elapsed != 10000 {
		t.Fatalf("expected elapsed clamped to 10000ms, got %d", elapsed)
	}
	remaining, _ := timers.Remaining(ctx, key)
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
}

func TestTimerMissingReadsAsZero(t *testing.T) {
	ctx := context.Background()
	timers, _ := newTimerAuthority()
	key := domain.TimerKey{AccessCode: "ROOM", QuestionUID: "missing"}

	elapsed, err := timers.Elapsed(ctx, key)
	if err != nil {
		t.Fatalf("elapsed: %v", err)
	}
	if elapsed != 0 {
		t.Fatalf("expected 0 for missing timer, got %d", elapsed)
	}
	if _, ok, err := timers.State(ctx, key); err != nil || ok {
		t.Fatalf("expected no state, got ok=%v err=%v", ok, err)
	}
}

func TestTimerStopThenDiscard(t *testing.T) {
	ctx := context.Background()
	timers, clock := newTimerAuthority()
	key := domain.TimerKey{AccessCode: "ROOM", QuestionUID: "q1"}

	if _, err := timers.Start(ctx, key, 10000); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(2 * time.Second)
	state, err := timers.Stop(ctx, key)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if state.Status != domain.TimerStopped || state.PlayedMs != 2000 {
		t.Fatalf("expected stopped at 2000ms, got %+v", state)
	}

	if err := timers.Discard(ctx, key); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, ok, _ := timers.State(ctx, key); ok {
		t.Fatal("expected timer gone after discard")
	}
}
