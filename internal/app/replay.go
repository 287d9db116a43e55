package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"game-session-service/internal/domain"
)

// ReplayRegistry tracks in-flight replay sessions keyed by (session, user).
// The interface exists so a multi-instance deployment can back it with a
// shared store without changing call sites.
type ReplayRegistry interface {
	Has(accessCode, userID string) bool
	Get(accessCode, userID string) (*ReplaySession, bool)
	Set(accessCode, userID string, rs *ReplaySession)
	Remove(accessCode, userID string)
}

// Replay FSM states.
type ReplayState string

const (
	ReplayAwaitingAnswer ReplayState = "awaiting-answer"
	ReplayRevealing      ReplayState = "revealing"
	ReplayAdvancing      ReplayState = "advancing"
	ReplayFinished       ReplayState = "finished"
)

// ReplayEvent is pushed to the replaying user only; other participants and
// the live leaderboard never observe an in-flight attempt.
type ReplayEvent struct {
	Type          string           `json:"type"`
	State         ReplayState      `json:"state,omitempty"`
	Attempt       int              `json:"attempt,omitempty"`
	QuestionIndex int              `json:"questionIndex,omitempty"`
	Question      *domain.Question `json:"question,omitempty"`
	Correctness   float64          `json:"correctness,omitempty"`
	Answered      bool             `json:"answered,omitempty"`
	Explanation   string           `json:"explanation,omitempty"`
	AttemptScore  int              `json:"attemptScore,omitempty"`
	BestScore     int              `json:"bestScore,omitempty"`
	Improved      bool             `json:"improved,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// ReplaySession is one user's in-flight pass through a finished session.
type ReplaySession struct {
	accessCode string
	userID     string
	attempt    int

	events   chan ReplayEvent
	answered chan string
	cancel   context.CancelFunc

	mu    sync.Mutex
	state ReplayState
}

// Events delivers the replay's per-question sequence to the owning user.
// The channel closes when the replay reaches a terminal state.
func (rs *ReplaySession) Events() <-chan ReplayEvent { return rs.events }

// Attempt returns this replay's attempt number.
func (rs *ReplaySession) Attempt() int { return rs.attempt }

// NotifyAnswered tells the FSM an answer arrived for a question, allowing it
// to advance before the timer's natural expiry.
func (rs *ReplaySession) NotifyAnswered(questionUID string) {
	select {
	case rs.answered <- questionUID:
	default:
	}
}

// Cancel tears the replay down (disconnect). The attempt is abandoned; the
// stored best score is untouched.
func (rs *ReplaySession) Cancel() { rs.cancel() }

func (rs *ReplaySession) setState(s ReplayState) {
	rs.mu.Lock()
	rs.state = s
	rs.mu.Unlock()
}

// State returns the FSM's current state.
func (rs *ReplaySession) State() ReplayState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state
}

// ReplayConfig tunes the per-question sequencing.
type ReplayConfig struct {
	// RevealDelay is how long the correctness reveal stays up before advancing.
	RevealDelay time.Duration
	// FallbackTimeLimitMs applies to questions without their own limit.
	FallbackTimeLimitMs int64
}

// ReplayManager runs isolated, sequential per-participant playbacks of a
// finished session. Each replay gets its own timers and answer records; on
// completion the attempt's total is folded into the participant's best score.
type ReplayManager struct {
	cfg          ReplayConfig
	registry     ReplayRegistry
	sessions     SessionStore
	participants ParticipantStore
	answers      AnswerStore
	timers       *TimerAuthority
	scoring      *ScoringEngine
	leaderboard  *LeaderboardEngine
	quizzes      QuizRepository
	clock        clockwork.Clock
}

func NewReplayManager(cfg ReplayConfig, registry ReplayRegistry, sessions SessionStore, participants ParticipantStore, answers AnswerStore, timers *TimerAuthority, scoring *ScoringEngine, leaderboard *LeaderboardEngine, quizzes QuizRepository, clock clockwork.Clock) *ReplayManager {
	if cfg.FallbackTimeLimitMs <= 0 {
		cfg.FallbackTimeLimitMs = 30000
	}
	return &ReplayManager{
		cfg:          cfg,
		registry:     registry,
		sessions:     sessions,
		participants: participants,
		answers:      answers,
		timers:       timers,
		scoring:      scoring,
		leaderboard:  leaderboard,
		quizzes:      quizzes,
		clock:        clock,
	}
}

// StartReplay begins a new attempt for one user. A genuinely new attempt
// increments the attempt counter and clears only that user's records from the
// previous attempt; a reconnect while a replay is in flight is rejected
// instead of silently forking a second sequence.
func (m *ReplayManager) StartReplay(ctx context.Context, accessCode, userID, displayName string) (*ReplaySession, error) {
	if m.registry.Has(accessCode, userID) {
		return nil, domain.ErrReplayInProgress
	}

	session, err := m.sessions.Get(ctx, accessCode)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusCompleted && session.Mode != domain.ModeDeferred {
		return nil, domain.ErrGameNotActive
	}
	quiz, err := m.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}

	if _, err := m.participants.Get(ctx, accessCode, userID, domain.KindDeferred); err != nil {
		if err != domain.ErrParticipantNotFound {
			return nil, err
		}
		order, err := m.leaderboard.JoinOrder(ctx, accessCode, userID)
		if err != nil {
			return nil, err
		}
		p := domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			Kind:        domain.KindDeferred,
			JoinOrder:   order,
			JoinedAt:    m.clock.Now(),
		}
		if err := m.participants.Upsert(ctx, accessCode, p); err != nil {
			return nil, fmt.Errorf("create deferred participant: %w", err)
		}
	}

	attempt, err := m.participants.IncrementAttempt(ctx, accessCode, userID)
	if err != nil {
		return nil, fmt.Errorf("increment attempt: %w", err)
	}
	if attempt > 1 {
		uids := questionUIDs(session, quiz)
		if err := m.answers.ClearAttempt(ctx, accessCode, userID, attempt-1, uids); err != nil {
			return nil, fmt.Errorf("clear previous attempt: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rs := &ReplaySession{
		accessCode: accessCode,
		userID:     userID,
		attempt:    attempt,
		events:     make(chan ReplayEvent, 16),
		answered:   make(chan string, 4),
		cancel:     cancel,
		state:      ReplayAdvancing,
	}
	m.registry.Set(accessCode, userID, rs)

	log.Info().
		Str("access_code", accessCode).
		Str("user_id", userID).
		Int("attempt", attempt).
		Msg("deferred replay started")

	go m.run(runCtx, rs, session, quiz)
	return rs, nil
}

// Resume returns the in-flight replay for a user, if any.
func (m *ReplayManager) Resume(accessCode, userID string) (*ReplaySession, bool) {
	return m.registry.Get(accessCode, userID)
}

func (m *ReplayManager) run(ctx context.Context, rs *ReplaySession, session domain.Session, quiz domain.Quiz) {
	defer func() {
		m.registry.Remove(rs.accessCode, rs.userID)
		close(rs.events)
	}()

	uids := questionUIDs(session, quiz)
	for i, uid := range uids {
		question := quiz.Question(uid)
		if question == nil {
			continue
		}
		if !m.playQuestion(ctx, rs, i, *question) {
			return
		}
		// The owning session vanishing mid-replay is terminal for this user
		// only; other replays keep running.
		if _, err := m.sessions.Get(ctx, rs.accessCode); err != nil {
			log.Error().
				Str("access_code", rs.accessCode).
				Str("user_id", rs.userID).
				Err(err).
				Msg("session disappeared mid-replay")
			rs.events <- ReplayEvent{Type: "replay_error", Error: domain.ReasonCode(err)}
			return
		}
	}

	m.finalize(ctx, rs)
}

// playQuestion drives one awaiting-answer -> revealing -> advancing cycle.
// Returns false when the replay was cancelled or failed terminally.
func (m *ReplayManager) playQuestion(ctx context.Context, rs *ReplaySession, index int, question domain.Question) bool {
	limit := question.TimeLimitMs
	if limit <= 0 {
		limit = m.cfg.FallbackTimeLimitMs
	}
	question.TimeLimitMs = limit

	key := domain.TimerKey{
		AccessCode:  rs.accessCode,
		QuestionUID: question.UID,
		UserID:      rs.userID,
		Attempt:     rs.attempt,
	}
	if _, err := m.timers.Start(ctx, key, limit); err != nil {
		rs.events <- ReplayEvent{Type: "replay_error", Error: domain.ReasonCode(err)}
		return false
	}

	rs.setState(ReplayAwaitingAnswer)
	sanitized := question.Sanitized()
	rs.events <- ReplayEvent{
		Type:          "replay_question",
		State:         ReplayAwaitingAnswer,
		Attempt:       rs.attempt,
		QuestionIndex: index,
		Question:      &sanitized,
	}

	expiry := m.clock.NewTimer(time.Duration(limit) * time.Millisecond)
	answered := false
waiting:
	for {
		select {
		case uid := <-rs.answered:
			if uid == question.UID {
				answered = true
				break waiting
			}
		case <-expiry.Chan():
			break waiting
		case <-ctx.Done():
			stopAndDrainTimer(expiry)
			return false
		}
	}
	stopAndDrainTimer(expiry)

	if _, err := m.timers.Stop(ctx, key); err != nil {
		log.Warn().Err(err).Str("user_id", rs.userID).Msg("stop replay timer")
	}

	rs.setState(ReplayRevealing)
	reveal := ReplayEvent{
		Type:          "replay_reveal",
		State:         ReplayRevealing,
		Attempt:       rs.attempt,
		QuestionIndex: index,
		Question:      &question,
		Answered:      answered,
		Explanation:   question.Explanation,
	}
	answerKey := AnswerKey{AccessCode: rs.accessCode, QuestionUID: question.UID, UserID: rs.userID, Attempt: rs.attempt}
	if record, ok, err := m.answers.Get(ctx, answerKey); err == nil && ok {
		reveal.Correctness = record.Correctness
		reveal.Answered = true
	}
	rs.events <- reveal

	rs.setState(ReplayAdvancing)
	if m.cfg.RevealDelay > 0 {
		pause := m.clock.NewTimer(m.cfg.RevealDelay)
		select {
		case <-pause.Chan():
		case <-ctx.Done():
			stopAndDrainTimer(pause)
			return false
		}
	}
	return true
}

// finalize folds the attempt total into the participant's stored deferred
// score. The store applies a conditional max, so a worse attempt never lowers
// the historical best and concurrent finalizations cannot race each other.
func (m *ReplayManager) finalize(ctx context.Context, rs *ReplaySession) {
	rs.setState(ReplayFinished)

	total, err := m.scoring.AttemptTotal(ctx, rs.accessCode, rs.userID, rs.attempt)
	if err != nil {
		log.Error().Err(err).Str("user_id", rs.userID).Msg("compute attempt total")
		rs.events <- ReplayEvent{Type: "replay_error", Error: domain.ReasonCode(err)}
		return
	}

	improved, err := m.participants.SetBestDeferredScore(ctx, rs.accessCode, rs.userID, total)
	if err != nil {
		log.Error().Err(err).Str("user_id", rs.userID).Msg("persist best deferred score")
		rs.events <- ReplayEvent{Type: "replay_error", Error: domain.ReasonCode(err)}
		return
	}

	best := total
	if p, err := m.participants.Get(ctx, rs.accessCode, rs.userID, domain.KindDeferred); err == nil {
		best = p.Score
	}

	log.Info().
		Str("access_code", rs.accessCode).
		Str("user_id", rs.userID).
		Int("attempt", rs.attempt).
		Int("attempt_score", total).
		Int("best_score", best).
		Bool("improved", improved).
		Msg("deferred replay finished")

	rs.events <- ReplayEvent{
		Type:         "replay_finished",
		State:        ReplayFinished,
		Attempt:      rs.attempt,
		AttemptScore: total,
		BestScore:    best,
		Improved:     improved,
	}
}

func questionUIDs(session domain.Session, quiz domain.Quiz) []string {
	if len(session.QuestionUIDs) > 0 {
		return session.QuestionUIDs
	}
	uids := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		uids = append(uids, q.UID)
	}
	return uids
}

// stopAndDrainTimer stops a timer and drains its channel so a fired-but-unread
// tick cannot leak into the next wait.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
