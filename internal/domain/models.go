package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// PlayMode selects the pacing model for a session.
type PlayMode string

const (
	ModeLive     PlayMode = "live"
	ModeQuiz     PlayMode = "quiz"
	ModeDeferred PlayMode = "deferred"
)

// SessionStatus is the lifecycle state of a session. Transitions are monotone:
// pending -> active -> completed.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// ParticipationKind distinguishes the live record from the deferred record of
// the same user. At most one record of each kind exists per (session, user).
type ParticipationKind string

const (
	KindLive     ParticipationKind = "live"
	KindDeferred ParticipationKind = "deferred"
)

// Session is one moderator-run game, addressed by its opaque access code.
type Session struct {
	AccessCode      string        `json:"accessCode"`
	QuizID          string        `json:"quizId"`
	Status          SessionStatus `json:"status"`
	Mode            PlayMode      `json:"mode"`
	QuestionUIDs    []string      `json:"questionUids"`
	CurrentQuestion int           `json:"currentQuestion"` // -1 when no question is current
	AnswersLocked   bool          `json:"answersLocked"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// CurrentQuestionUID returns the uid of the current question, or "" if none.
func (s Session) CurrentQuestionUID() string {
	if s.CurrentQuestion < 0 || s.CurrentQuestion >= len(s.QuestionUIDs) {
		return ""
	}
	return s.QuestionUIDs[s.CurrentQuestion]
}

// Participant is one user's relationship to a session for one participation
// kind. JoinOrder and DisplayName are the frozen tie-break keys: captured at
// first join and never recomputed. For the deferred kind, Score is the best
// score across all completed attempts.
type Participant struct {
	UserID       string            `json:"userId"`
	DisplayName  string            `json:"displayName"`
	Kind         ParticipationKind `json:"kind"`
	Score        int               `json:"score"`
	AttemptCount int               `json:"attemptCount"`
	JoinOrder    int               `json:"joinOrder"`
	JoinedAt     time.Time         `json:"joinedAt"`
}

// QuestionKind selects how correctness is evaluated.
type QuestionKind string

const (
	QuestionSingleChoice QuestionKind = "single_choice"
	QuestionMultiChoice  QuestionKind = "multiple_choice"
	QuestionNumeric      QuestionKind = "numeric"
	QuestionText         QuestionKind = "text"
)

// Question models one question of a quiz bank. CorrectOptions is parallel to
// Options for choice questions; Tolerance is the accepted band around
// CorrectNumber for numeric questions.
type Question struct {
	UID            string       `json:"uid"`
	Prompt         string       `json:"prompt"`
	Kind           QuestionKind `json:"kind"`
	Options        []string     `json:"options,omitempty"`
	CorrectOptions []bool       `json:"correctOptions,omitempty"`
	CorrectText    string       `json:"correctText,omitempty"`
	CorrectNumber  float64      `json:"correctNumber,omitempty"`
	Tolerance      float64      `json:"tolerance,omitempty"`
	TimeLimitMs    int64        `json:"timeLimitMs"`
	Explanation    string       `json:"explanation,omitempty"`
}

// Sanitized strips everything a participant could use to cheat: correct
// answers, tolerance and explanation.
func (q Question) Sanitized() Question {
	q.CorrectOptions = nil
	q.CorrectText = ""
	q.CorrectNumber = 0
	q.Tolerance = 0
	q.Explanation = ""
	return q
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Question returns the question with the given uid, or nil.
func (q Quiz) Question(uid string) *Question {
	for i := range q.Questions {
		if q.Questions[i].UID == uid {
			return &q.Questions[i]
		}
	}
	return nil
}

// AnswerValue is a submitted answer. Exactly one of the fields is meaningful
// depending on the question kind.
type AnswerValue struct {
	Selected []int    `json:"selected,omitempty"`
	Text     string   `json:"text,omitempty"`
	Number   *float64 `json:"number,omitempty"`
}

// Equal reports whether two values are the same submission. Selected options
// compare order-insensitively so a reordered resubmission of the same choice
// set is still a duplicate.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if len(v.Selected) != len(o.Selected) {
		return false
	}
	a := append([]int(nil), v.Selected...)
	b := append([]int(nil), o.Selected...)
	sort.Ints(a)
	sort.Ints(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	if !strings.EqualFold(strings.TrimSpace(v.Text), strings.TrimSpace(o.Text)) {
		return false
	}
	if (v.Number == nil) != (o.Number == nil) {
		return false
	}
	if v.Number != nil && math.Abs(*v.Number-*o.Number) > 1e-9 {
		return false
	}
	return true
}

// AnswerSubmission is the scoring signal from clients. Attempt is 0 for live
// and quiz play; deferred replays carry their attempt number so records from
// different attempts never collide.
type AnswerSubmission struct {
	QuestionUID string      `json:"questionUid"`
	Value       AnswerValue `json:"value"`
	Attempt     int         `json:"attempt,omitempty"`
}

// AnswerRecord is the latest accepted submission of one participant for one
// question. A changed answer replaces the record; a duplicate leaves it alone.
type AnswerRecord struct {
	UserID       string      `json:"userId"`
	Value        AnswerValue `json:"value"`
	ServerTimeMs int64       `json:"serverTimeMs"`
	Correctness  float64     `json:"correctness"`
	Score        int         `json:"score"`
	SubmittedAt  time.Time   `json:"submittedAt"`
}

// ScoreResult summarizes the outcome of a submission for a single user.
type ScoreResult struct {
	ScoreUpdated  bool    `json:"scoreUpdated"`
	ScoreDelta    int     `json:"scoreDelta"`
	TotalScore    int     `json:"totalScore"`
	AnswerChanged bool    `json:"answerChanged"`
	Correctness   float64 `json:"correctness"`
	Reason        string  `json:"reason"`
}

// TimerStatus is the state of a canonical timer.
type TimerStatus string

const (
	TimerStopped TimerStatus = "stopped"
	TimerRunning TimerStatus = "running"
	TimerPaused  TimerStatus = "paused"
)

// TimerKey addresses exactly one authoritative timer. Live and quiz timers
// leave UserID empty and Attempt zero; deferred timers are additionally keyed
// by user and attempt so replays never interfere with each other.
type TimerKey struct {
	AccessCode  string
	QuestionUID string
	UserID      string
	Attempt     int
}

// TimerState is the stored state of a canonical timer. PlayedMs accumulates
// time spent running; elapsed time is always derived from PlayedMs plus the
// wall clock, never from a caller-supplied value.
type TimerState struct {
	QuestionUID string      `json:"questionUid"`
	Status      TimerStatus `json:"status"`
	DurationMs  int64       `json:"durationMs"`
	PlayedMs    int64       `json:"playedMs"`
	LastChange  time.Time   `json:"lastChange"`
}

// LeaderboardEntry is one row of a ranking.
type LeaderboardEntry struct {
	UserID       string            `json:"userId"`
	DisplayName  string            `json:"displayName"`
	Score        int               `json:"score"`
	Rank         int               `json:"rank"`
	Kind         ParticipationKind `json:"kind"`
	AttemptCount int               `json:"attemptCount"`
}

// Leaderboard is an ordered ranking. Snapshots carry the generation instant
// and id so audiences can tell stale payloads apart.
type Leaderboard struct {
	AccessCode  string             `json:"accessCode"`
	SnapshotID  string             `json:"snapshotId,omitempty"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// AnswerStats aggregates how a question was answered, revealed to the public
// display only on explicit moderator action.
type AnswerStats struct {
	QuestionUID  string      `json:"questionUid"`
	TotalAnswers int         `json:"totalAnswers"`
	OptionCounts map[int]int `json:"optionCounts,omitempty"`
	CorrectCount int         `json:"correctCount"`
}
