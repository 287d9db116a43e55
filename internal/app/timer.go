package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"game-session-service/internal/domain"
)

// TimerAuthority is the single server-side source of truth for per-question
// elapsed time. Elapsed and remaining are pure arithmetic over stored instants
// and the injected clock; no caller-supplied timestamp is ever trusted, so a
// lagging or hostile client cannot stretch or shrink its answer window.
type TimerAuthority struct {
	store TimerStore
	clock clockwork.Clock
}

func NewTimerAuthority(store TimerStore, clock clockwork.Clock) *TimerAuthority {
	return &TimerAuthority{store: store, clock: clock}
}

// Start creates and starts the timer for a key. Restarting an already-running
// timer is a no-op returning the existing state, so duplicate question-advance
// events cannot reset the window mid-flight.
func (t *TimerAuthority) Start(ctx context.Context, key domain.TimerKey, durationMs int64) (domain.TimerState, error) {
	existing, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return domain.TimerState{}, fmt.Errorf("load timer: %w", err)
	}
	if ok && existing.Status == domain.TimerRunning {
		return existing, nil
	}

	state := domain.TimerState{
		QuestionUID: key.QuestionUID,
		Status:      domain.TimerRunning,
		DurationMs:  durationMs,
		PlayedMs:    0,
		LastChange:  t.clock.Now(),
	}
	if err := t.store.Set(ctx, key, state); err != nil {
		return domain.TimerState{}, fmt.Errorf("store timer: %w", err)
	}
	return state, nil
}

// Pause freezes the accumulated play time, clamped to the duration.
func (t *TimerAuthority) Pause(ctx context.Context, key domain.TimerKey) (domain.TimerState, error) {
	state, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return domain.TimerState{}, fmt.Errorf("load timer: %w", err)
	}
	if !ok || state.Status != domain.TimerRunning {
		return state, nil
	}
	state.PlayedMs = t.elapsedOf(state)
	state.Status = domain.TimerPaused
	state.LastChange = t.clock.Now()
	if err := t.store.Set(ctx, key, state); err != nil {
		return domain.TimerState{}, fmt.Errorf("store timer: %w", err)
	}
	return state, nil
}

// Resume continues a paused timer from its frozen play time.
func (t *TimerAuthority) Resume(ctx context.Context, key domain.TimerKey) (domain.TimerState, error) {
	state, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return domain.TimerState{}, fmt.Errorf("load timer: %w", err)
	}
	if !ok || state.Status != domain.TimerPaused {
		return state, nil
	}
	state.Status = domain.TimerRunning
	state.LastChange = t.clock.Now()
	if err := t.store.Set(ctx, key, state); err != nil {
		return domain.TimerState{}, fmt.Errorf("store timer: %w", err)
	}
	return state, nil
}

// Stop terminates the timer. Submissions against a stopped timer are rejected.
func (t *TimerAuthority) Stop(ctx context.Context, key domain.TimerKey) (domain.TimerState, error) {
	state, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return domain.TimerState{}, fmt.Errorf("load timer: %w", err)
	}
	if !ok {
		state = domain.TimerState{QuestionUID: key.QuestionUID}
	}
	state.PlayedMs = t.elapsedOf(state)
	state.Status = domain.TimerStopped
	state.LastChange = t.clock.Now()
	if err := t.store.Set(ctx, key, state); err != nil {
		return domain.TimerState{}, fmt.Errorf("store timer: %w", err)
	}
	return state, nil
}

// Discard removes the timer entirely (question superseded or session ended).
func (t *TimerAuthority) Discard(ctx context.Context, key domain.TimerKey) error {
	return t.store.Delete(ctx, key)
}

// State returns the stored timer state. ok is false when no timer exists.
func (t *TimerAuthority) State(ctx context.Context, key domain.TimerKey) (domain.TimerState, bool, error) {
	return t.store.Get(ctx, key)
}

// Elapsed returns the authoritative elapsed milliseconds for a key. A missing
// timer yields 0: callers treat that as "not yet started" so scoring stays
// computable right after a crash-restart.
func (t *TimerAuthority) Elapsed(ctx context.Context, key domain.TimerKey) (int64, error) {
	state, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load timer: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return t.elapsedOf(state), nil
}

// Remaining returns the authoritative remaining milliseconds, never negative.
func (t *TimerAuthority) Remaining(ctx context.Context, key domain.TimerKey) (int64, error) {
	state, ok, err := t.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("load timer: %w", err)
	}
	if !ok {
		return 0, nil
	}
	remaining := state.DurationMs - t.elapsedOf(state)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func (t *TimerAuthority) elapsedOf(state domain.TimerState) int64 {
	elapsed := state.PlayedMs
	if state.Status == domain.TimerRunning {
		elapsed += t.clock.Now().Sub(state.LastChange).Milliseconds()
	}
	if state.DurationMs > 0 && elapsed > state.DurationMs {
		elapsed = state.DurationMs
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed
}
