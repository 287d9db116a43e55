package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"game-session-service/internal/domain"
)

// RevealPolicy configures what a submitter may see about their own progress
// mid-question. The snapshot shown to rooms is unaffected either way.
type RevealPolicy struct {
	SelfScore bool
}

// Orchestrator drives the session lifecycle state machine and owns every
// reveal point: all leaderboard broadcasts and audience fan-out go through it,
// never through the scoring path.
type Orchestrator struct {
	sessions     SessionStore
	archive      SessionArchive
	participants ParticipantStore
	answers      AnswerStore
	timers       *TimerAuthority
	leaderboard  *LeaderboardEngine
	ranking      RankingStore
	quizzes      QuizRepository
	broadcaster  Broadcaster
	clock        clockwork.Clock
	reveal       RevealPolicy
}

func NewOrchestrator(sessions SessionStore, archive SessionArchive, participants ParticipantStore, answers AnswerStore, timers *TimerAuthority, leaderboard *LeaderboardEngine, ranking RankingStore, quizzes QuizRepository, broadcaster Broadcaster, clock clockwork.Clock, reveal RevealPolicy) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		archive:      archive,
		participants: participants,
		answers:      answers,
		timers:       timers,
		leaderboard:  leaderboard,
		ranking:      ranking,
		quizzes:      quizzes,
		broadcaster:  broadcaster,
		clock:        clock,
		reveal:       reveal,
	}
}

// RevealPolicy returns the configured self-score reveal policy.
func (o *Orchestrator) RevealPolicy() RevealPolicy { return o.reveal }

// CreateSession seeds a pending session for an access code. The durable
// record is written alongside the shared-store record.
func (o *Orchestrator) CreateSession(ctx context.Context, accessCode, quizID string, mode domain.PlayMode) (domain.Session, error) {
	quiz, err := o.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	uids := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		uids = append(uids, q.UID)
	}
	session := domain.Session{
		AccessCode:      accessCode,
		QuizID:          quizID,
		Status:          domain.StatusPending,
		Mode:            mode,
		QuestionUIDs:    uids,
		CurrentQuestion: -1,
		CreatedAt:       o.clock.Now(),
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}
	if o.archive != nil {
		if err := o.archive.SaveSession(ctx, session); err != nil {
			return domain.Session{}, fmt.Errorf("archive session: %w", err)
		}
	}
	log.Info().Str("access_code", accessCode).Str("quiz_id", quizID).Str("mode", string(mode)).Msg("session created")
	return session, nil
}

// JoinResult is the state snapshot handed to a joining client.
type JoinResult struct {
	Session     domain.Session     `json:"session"`
	Participant domain.Participant `json:"participant"`
	Bonus       int                `json:"bonus"`
	Timer       domain.TimerState  `json:"timer"`
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// Join registers or refreshes a live participant. First joins freeze the
// tie-break keys and earn the one-time join-order bonus; reconnects refresh
// the display name only. Joining is a reveal point: the snapshot is refreshed
// and fanned out.
func (o *Orchestrator) Join(ctx context.Context, accessCode, userID, displayName string) (JoinResult, error) {
	session, err := o.sessions.Get(ctx, accessCode)
	if err != nil {
		return JoinResult{}, err
	}

	participant, err := o.participants.Get(ctx, accessCode, userID, domain.KindLive)
	switch err {
	case nil:
		// Reconnect: refresh the display name, leave score and join order alone.
		participant.DisplayName = displayName
		if err := o.participants.Upsert(ctx, accessCode, participant); err != nil {
			return JoinResult{}, fmt.Errorf("refresh participant: %w", err)
		}
	case domain.ErrParticipantNotFound:
		participant = domain.Participant{
			UserID:      userID,
			DisplayName: displayName,
			Kind:        domain.KindLive,
			JoinedAt:    o.clock.Now(),
		}
		if err := o.participants.Upsert(ctx, accessCode, participant); err != nil {
			return JoinResult{}, fmt.Errorf("create participant: %w", err)
		}
	default:
		return JoinResult{}, err
	}

	// The bonus call is what appends the user to the join-order ledger; the
	// frozen order is read back afterwards and cached on the record.
	bonus, err := o.leaderboard.AssignJoinBonus(ctx, accessCode, userID)
	if err != nil {
		return JoinResult{}, err
	}
	if bonus > 0 {
		order, err := o.leaderboard.JoinOrder(ctx, accessCode, userID)
		if err != nil {
			return JoinResult{}, err
		}
		participant.JoinOrder = order
		if err := o.participants.Upsert(ctx, accessCode, participant); err != nil {
			return JoinResult{}, fmt.Errorf("freeze join order: %w", err)
		}
	}
	if fresh, err := o.participants.Get(ctx, accessCode, userID, domain.KindLive); err == nil {
		participant = fresh
	}

	lb, err := o.leaderboard.RefreshSnapshot(ctx, accessCode)
	if err != nil {
		return JoinResult{}, err
	}
	o.broadcaster.Broadcast(accessCode, AudienceProjection, Event{Type: "leaderboard", Payload: lb})
	o.broadcaster.Broadcast(accessCode, AudienceDashboard, Event{Type: "participant_joined", Payload: participant})

	timerState := domain.TimerState{Status: domain.TimerStopped}
	if uid := session.CurrentQuestionUID(); uid != "" {
		if s, ok, err := o.timers.State(ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: uid}); err == nil && ok {
			timerState = s
		}
	}

	return JoinResult{
		Session:     session,
		Participant: participant,
		Bonus:       bonus,
		Timer:       timerState,
		Leaderboard: lb,
	}, nil
}

// AdvanceQuestion makes the question at index current. The first advance
// activates a pending session. Prior live answer records for the question are
// cleared as defense against stale data from an earlier use of the access
// code, answers are unlocked and the canonical timer starts.
func (o *Orchestrator) AdvanceQuestion(ctx context.Context, accessCode string, index int) (domain.Session, error) {
	session, err := o.sessions.Get(ctx, accessCode)
	if err != nil {
		return domain.Session{}, err
	}
	if session.Status == domain.StatusCompleted {
		return domain.Session{}, domain.ErrGameNotActive
	}
	if index < 0 || index >= len(session.QuestionUIDs) {
		return domain.Session{}, domain.ErrQuestionNotFound
	}

	quiz, err := o.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.Session{}, err
	}
	uid := session.QuestionUIDs[index]
	question := quiz.Question(uid)
	if question == nil {
		return domain.Session{}, domain.ErrQuestionNotFound
	}

	// Discard the superseded question's timer before the new one starts.
	if prev := session.CurrentQuestionUID(); prev != "" && prev != uid {
		if err := o.timers.Discard(ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: prev}); err != nil {
			log.Warn().Err(err).Str("access_code", accessCode).Msg("discard superseded timer")
		}
	}

	if err := o.answers.ClearQuestion(ctx, accessCode, uid); err != nil {
		return domain.Session{}, fmt.Errorf("clear stale answers: %w", err)
	}

	session.Status = domain.StatusActive
	session.CurrentQuestion = index
	session.AnswersLocked = false
	if err := o.sessions.Save(ctx, session); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}

	timerState, err := o.timers.Start(ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: uid}, question.TimeLimitMs)
	if err != nil {
		return domain.Session{}, err
	}

	sanitized := question.Sanitized()
	payload := map[string]any{
		"questionUid": uid,
		"index":       index,
		"timer":       timerState,
	}
	o.broadcaster.Broadcast(accessCode, AudienceParticipants, Event{Type: "question", Payload: mergeQuestion(payload, sanitized)})
	o.broadcaster.Broadcast(accessCode, AudienceProjection, Event{Type: "question", Payload: mergeQuestion(payload, sanitized)})
	// The moderator dashboard is the only audience that sees the full question.
	o.broadcaster.Broadcast(accessCode, AudienceDashboard, Event{Type: "question", Payload: mergeQuestion(payload, *question)})

	log.Info().Str("access_code", accessCode).Int("index", index).Str("question_uid", uid).Msg("question advanced")
	return session, nil
}

// LockAnswers closes the acceptance window without moving the question index.
func (o *Orchestrator) LockAnswers(ctx context.Context, accessCode string) error {
	return o.setLock(ctx, accessCode, true)
}

// UnlockAnswers reopens the acceptance window.
func (o *Orchestrator) UnlockAnswers(ctx context.Context, accessCode string) error {
	return o.setLock(ctx, accessCode, false)
}

func (o *Orchestrator) setLock(ctx context.Context, accessCode string, locked bool) error {
	session, err := o.sessions.Get(ctx, accessCode)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusActive {
		return domain.ErrGameNotActive
	}
	session.AnswersLocked = locked
	if err := o.sessions.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	eventType := "answers_unlocked"
	if locked {
		eventType = "answers_locked"
		if uid := session.CurrentQuestionUID(); uid != "" {
			if _, err := o.timers.Pause(ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: uid}); err != nil {
				log.Warn().Err(err).Str("access_code", accessCode).Msg("pause timer on lock")
			}
		}
	}
	event := Event{Type: eventType, Payload: map[string]any{"questionUid": session.CurrentQuestionUID(), "index": session.CurrentQuestion}}
	o.broadcaster.Broadcast(accessCode, AudienceParticipants, event)
	o.broadcaster.Broadcast(accessCode, AudienceDashboard, event)
	o.broadcaster.Broadcast(accessCode, AudienceProjection, event)
	return nil
}

// PauseTimer / ResumeTimer are the moderator's explicit timer actions on the
// current question.
func (o *Orchestrator) PauseTimer(ctx context.Context, accessCode string) (domain.TimerState, error) {
	return o.timerAction(ctx, accessCode, (*TimerAuthority).Pause)
}

func (o *Orchestrator) ResumeTimer(ctx context.Context, accessCode string) (domain.TimerState, error) {
	return o.timerAction(ctx, accessCode, (*TimerAuthority).Resume)
}

// StopTimer ends the current question's timer for good; a stopped timer
// rejects resume and submissions fail with TimerStopped.
func (o *Orchestrator) StopTimer(ctx context.Context, accessCode string) (domain.TimerState, error) {
	return o.timerAction(ctx, accessCode, (*TimerAuthority).Stop)
}

func (o *Orchestrator) timerAction(ctx context.Context, accessCode string, action func(*TimerAuthority, context.Context, domain.TimerKey) (domain.TimerState, error)) (domain.TimerState, error) {
	session, err := o.sessions.Get(ctx, accessCode)
	if err != nil {
		return domain.TimerState{}, err
	}
	uid := session.CurrentQuestionUID()
	if uid == "" {
		return domain.TimerState{}, domain.ErrQuestionNotFound
	}
	state, err := action(o.timers, ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: uid})
	if err != nil {
		return domain.TimerState{}, err
	}
	event := Event{Type: "timer", Payload: state}
	o.broadcaster.Broadcast(accessCode, AudienceParticipants, event)
	o.broadcaster.Broadcast(accessCode, AudienceDashboard, event)
	o.broadcaster.Broadcast(accessCode, AudienceProjection, event)
	return state, nil
}

// RevealLeaderboard is the explicit moderator reveal point: refresh the
// snapshot and fan it out to the non-moderator audiences.
func (o *Orchestrator) RevealLeaderboard(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	lb, err := o.leaderboard.RefreshSnapshot(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	o.broadcaster.Broadcast(accessCode, AudienceParticipants, Event{Type: "leaderboard", Payload: lb})
	o.broadcaster.Broadcast(accessCode, AudienceProjection, Event{Type: "leaderboard", Payload: lb})
	return lb, nil
}

// LiveRanking is the moderator-only view; it never goes to the other rooms.
func (o *Orchestrator) LiveRanking(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	return o.leaderboard.LiveRanking(ctx, accessCode)
}

// RevealAnswerStats publishes per-question aggregates. The dashboard always
// receives them; the public display only through this explicit action.
func (o *Orchestrator) RevealAnswerStats(ctx context.Context, accessCode, questionUID string) (domain.AnswerStats, error) {
	stats, err := o.AnswerStats(ctx, accessCode, questionUID)
	if err != nil {
		return domain.AnswerStats{}, err
	}
	o.broadcaster.Broadcast(accessCode, AudienceProjection, Event{Type: "answer_stats", Payload: stats})
	return stats, nil
}

// AnswerStats aggregates live answer records for a question.
func (o *Orchestrator) AnswerStats(ctx context.Context, accessCode, questionUID string) (domain.AnswerStats, error) {
	records, err := o.answers.ListQuestion(ctx, accessCode, questionUID)
	if err != nil {
		return domain.AnswerStats{}, fmt.Errorf("list answers: %w", err)
	}
	stats := domain.AnswerStats{QuestionUID: questionUID, OptionCounts: map[int]int{}}
	for _, r := range records {
		stats.TotalAnswers++
		if r.Correctness >= 1 {
			stats.CorrectCount++
		}
		for _, idx := range r.Value.Selected {
			stats.OptionCounts[idx]++
		}
	}
	return stats, nil
}

// EndSession completes the session. Final scores are persisted durably before
// any ephemeral state is touched, so a crash between the two steps cannot
// lose results. Ephemeral cleanup itself is deferred to ArchiveSession.
func (o *Orchestrator) EndSession(ctx context.Context, accessCode string) (domain.Leaderboard, error) {
	session, err := o.sessions.Get(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if session.Status == domain.StatusCompleted {
		return o.leaderboard.Snapshot(ctx, accessCode)
	}

	if uid := session.CurrentQuestionUID(); uid != "" {
		if _, err := o.timers.Pause(ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: uid}); err != nil {
			log.Warn().Err(err).Str("access_code", accessCode).Msg("pause timer on end")
		}
	}

	session.Status = domain.StatusCompleted
	session.AnswersLocked = true

	// Persist final state durably first; the live/deferred score split lives
	// on the participant rows which the participant store already keeps durable.
	if o.archive != nil {
		if err := o.archive.SaveSession(ctx, session); err != nil {
			return domain.Leaderboard{}, fmt.Errorf("persist final session: %w", err)
		}
	}
	if err := o.sessions.Save(ctx, session); err != nil {
		return domain.Leaderboard{}, fmt.Errorf("save session: %w", err)
	}

	lb, err := o.leaderboard.RefreshSnapshot(ctx, accessCode)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	payload := map[string]any{"leaderboard": lb, "accessCode": accessCode}
	o.broadcaster.Broadcast(accessCode, AudienceParticipants, Event{Type: "session_ended", Payload: payload})
	o.broadcaster.Broadcast(accessCode, AudienceDashboard, Event{Type: "session_ended", Payload: payload})
	o.broadcaster.Broadcast(accessCode, AudienceProjection, Event{Type: "session_ended", Payload: payload})

	log.Info().Str("access_code", accessCode).Msg("session ended")
	return lb, nil
}

// ArchiveSession clears all ephemeral state for a completed session. Only
// valid after EndSession has durably persisted the final record.
func (o *Orchestrator) ArchiveSession(ctx context.Context, accessCode string) error {
	session, err := o.sessions.Get(ctx, accessCode)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusCompleted {
		return domain.ErrGameNotActive
	}
	for _, uid := range session.QuestionUIDs {
		if err := o.timers.Discard(ctx, domain.TimerKey{AccessCode: accessCode, QuestionUID: uid}); err != nil {
			log.Warn().Err(err).Str("access_code", accessCode).Msg("discard timer on archive")
		}
		if err := o.answers.ClearQuestion(ctx, accessCode, uid); err != nil {
			log.Warn().Err(err).Str("access_code", accessCode).Msg("clear answers on archive")
		}
	}
	if err := o.ranking.Clear(ctx, accessCode); err != nil {
		return fmt.Errorf("clear ranking state: %w", err)
	}
	return o.sessions.Delete(ctx, accessCode)
}

// Session returns the current session record.
func (o *Orchestrator) Session(ctx context.Context, accessCode string) (domain.Session, error) {
	return o.sessions.Get(ctx, accessCode)
}

func mergeQuestion(base map[string]any, q domain.Question) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out["question"] = q
	return out
}
