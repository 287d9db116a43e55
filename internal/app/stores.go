package app

import (
	"context"

	"game-session-service/internal/domain"
)

// SessionStore holds the mutable session record keyed by access code. Backed
// by the fast shared store in production; survives process restarts within the
// retention window.
type SessionStore interface {
	Get(ctx context.Context, accessCode string) (domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context, accessCode string) error
}

// SessionArchive is the durable side of the session record. Written on
// creation and on end-of-session, before any ephemeral state is cleared.
type SessionArchive interface {
	SaveSession(ctx context.Context, session domain.Session) error
}

// ParticipantStore is the durable participant record with atomic score
// mutations. Every score change goes through an atomic increment, replace or
// conditional-max; plain read-then-write is exactly how duplicate bonuses and
// lost best-score updates happen.
type ParticipantStore interface {
	Get(ctx context.Context, accessCode, userID string, kind domain.ParticipationKind) (domain.Participant, error)
	// Upsert inserts a new record or updates the mutable identity fields
	// (display name, join order) of an existing one. It never touches score or
	// attempt count on update; those only move through the atomic mutators.
	Upsert(ctx context.Context, accessCode string, p domain.Participant) error
	List(ctx context.Context, accessCode string) ([]domain.Participant, error)
	// AddScore atomically increments the score and returns the new total.
	AddScore(ctx context.Context, accessCode, userID string, kind domain.ParticipationKind, delta int) (int, error)
	// SetScore atomically replaces the score.
	SetScore(ctx context.Context, accessCode, userID string, kind domain.ParticipationKind, score int) error
	// SetBestDeferredScore replaces the deferred score only if the new value is
	// strictly higher. Returns whether the stored score changed.
	SetBestDeferredScore(ctx context.Context, accessCode, userID string, score int) (bool, error)
	// IncrementAttempt bumps the deferred attempt counter and returns the new value.
	IncrementAttempt(ctx context.Context, accessCode, userID string) (int, error)
}

// AnswerKey addresses one participant's answer record for one question.
// Attempt 0 is live/quiz play; deferred attempts are namespaced so a new
// attempt never sees the previous attempt's records.
type AnswerKey struct {
	AccessCode  string
	QuestionUID string
	UserID      string
	Attempt     int
}

// AnswerStore holds the latest answer record per key.
type AnswerStore interface {
	Get(ctx context.Context, key AnswerKey) (domain.AnswerRecord, bool, error)
	Put(ctx context.Context, key AnswerKey, record domain.AnswerRecord) error
	// ListQuestion returns all live records for a question (attempt 0).
	ListQuestion(ctx context.Context, accessCode, questionUID string) ([]domain.AnswerRecord, error)
	// ListAttempt returns one user's records across the given questions for an attempt.
	ListAttempt(ctx context.Context, accessCode, userID string, attempt int, questionUIDs []string) ([]domain.AnswerRecord, error)
	// ClearQuestion drops all live records for a question.
	ClearQuestion(ctx context.Context, accessCode, questionUID string) error
	// ClearAttempt drops one user's records for an attempt.
	ClearAttempt(ctx context.Context, accessCode, userID string, attempt int, questionUIDs []string) error
}

// TimerStore persists canonical timer state per key.
type TimerStore interface {
	Get(ctx context.Context, key domain.TimerKey) (domain.TimerState, bool, error)
	Set(ctx context.Context, key domain.TimerKey, state domain.TimerState) error
	Delete(ctx context.Context, key domain.TimerKey) error
}

// RankingStore holds the ephemeral ranking structure, the append-only
// join-order ledger and the revealed snapshot.
type RankingStore interface {
	// UpdateScore sets the user's score in the live ranking structure.
	UpdateScore(ctx context.Context, accessCode, userID string, score int) error
	// Scores returns the live ranking scores keyed by user.
	Scores(ctx context.Context, accessCode string) (map[string]int, error)
	// JoinRank appends the user to the join-order ledger if absent and returns
	// their 1-based join position. already is true when the user was a member
	// before this call; the position is stable across reinvocations.
	JoinRank(ctx context.Context, accessCode, userID string) (order int, already bool, err error)
	SaveSnapshot(ctx context.Context, accessCode string, lb domain.Leaderboard) error
	Snapshot(ctx context.Context, accessCode string) (domain.Leaderboard, bool, error)
	// Clear drops all ephemeral ranking state for a session.
	Clear(ctx context.Context, accessCode string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Audience names one of the three fan-out targets of a session.
type Audience string

const (
	AudienceParticipants Audience = "participants"
	AudienceDashboard    Audience = "dashboard"
	AudienceProjection   Audience = "projection"
)

// Event is a typed payload broadcast to an audience room.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster fans events out to one audience room of a session. Implemented
// by the in-process websocket hub and optionally bridged over NATS for
// multi-instance deployments.
type Broadcaster interface {
	Broadcast(accessCode string, audience Audience, event Event)
}

// MultiBroadcaster publishes to every wrapped broadcaster.
type MultiBroadcaster []Broadcaster

func (m MultiBroadcaster) Broadcast(accessCode string, audience Audience, event Event) {
	for _, b := range m {
		b.Broadcast(accessCode, audience, event)
	}
}

// NopBroadcaster discards events; useful in tests.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, Audience, Event) {}
