package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/jonboulle/clockwork"

	"game-session-service/internal/domain"
)

// ScoringConfig carries the knobs of the canonical scoring formula.
type ScoringConfig struct {
	// BasePool is divided evenly across the session's question count.
	BasePool int
	// DecayAlpha weights the linear time penalty, in [0, 1].
	DecayAlpha float64
}

// ScoringEngine evaluates submissions and applies scores exactly once per
// distinct answer value. Elapsed time always comes from the TimerAuthority.
type ScoringEngine struct {
	cfg          ScoringConfig
	sessions     SessionStore
	participants ParticipantStore
	answers      AnswerStore
	ranking      RankingStore
	timers       *TimerAuthority
	quizzes      QuizRepository
	clock        clockwork.Clock
}

func NewScoringEngine(cfg ScoringConfig, sessions SessionStore, participants ParticipantStore, answers AnswerStore, ranking RankingStore, timers *TimerAuthority, quizzes QuizRepository, clock clockwork.Clock) *ScoringEngine {
	return &ScoringEngine{
		cfg:          cfg,
		sessions:     sessions,
		participants: participants,
		answers:      answers,
		ranking:      ranking,
		timers:       timers,
		quizzes:      quizzes,
		clock:        clock,
	}
}

// SubmitAnswer records and scores one submission. A resubmission with an
// unchanged value is a no-op; a changed value replaces the previous record and
// score contribution with a fresh server-side evaluation. Leaderboard
// broadcasting is deliberately not done here; reveal points belong to the
// orchestrator.
func (e *ScoringEngine) SubmitAnswer(ctx context.Context, accessCode, userID string, sub domain.AnswerSubmission) (domain.ScoreResult, error) {
	session, err := e.sessions.Get(ctx, accessCode)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	deferred := sub.Attempt > 0
	if !deferred {
		if session.Status != domain.StatusActive {
			return domain.ScoreResult{}, domain.ErrGameNotActive
		}
		if session.AnswersLocked {
			return domain.ScoreResult{}, domain.ErrAnswersLocked
		}
	}

	kind := domain.KindLive
	if deferred {
		kind = domain.KindDeferred
	}
	participant, err := e.participants.Get(ctx, accessCode, userID, kind)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	quiz, err := e.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	question := quiz.Question(sub.QuestionUID)
	if question == nil {
		return domain.ScoreResult{}, domain.ErrQuestionNotFound
	}

	timerKey := domain.TimerKey{AccessCode: accessCode, QuestionUID: sub.QuestionUID}
	if deferred {
		timerKey.UserID = userID
		timerKey.Attempt = sub.Attempt
	}
	if state, ok, err := e.timers.State(ctx, timerKey); err != nil {
		return domain.ScoreResult{}, err
	} else if ok {
		if state.Status == domain.TimerStopped {
			return domain.ScoreResult{}, domain.ErrTimerStopped
		}
		if remaining, err := e.timers.Remaining(ctx, timerKey); err != nil {
			return domain.ScoreResult{}, err
		} else if state.DurationMs > 0 && remaining == 0 {
			return domain.ScoreResult{}, domain.ErrTimeExpired
		}
	}

	answerKey := AnswerKey{AccessCode: accessCode, QuestionUID: sub.QuestionUID, UserID: userID, Attempt: sub.Attempt}
	previous, hadPrevious, err := e.answers.Get(ctx, answerKey)
	if err != nil {
		return domain.ScoreResult{}, fmt.Errorf("load previous answer: %w", err)
	}
	if hadPrevious && previous.Value.Equal(sub.Value) {
		total, err := e.totalScore(ctx, accessCode, userID, participant, sub.Attempt, quiz)
		if err != nil {
			return domain.ScoreResult{}, err
		}
		return domain.ScoreResult{
			ScoreUpdated:  false,
			AnswerChanged: false,
			TotalScore:    total,
			Correctness:   previous.Correctness,
			Reason:        "same answer already submitted",
		}, nil
	}

	elapsed, err := e.timers.Elapsed(ctx, timerKey)
	if err != nil {
		return domain.ScoreResult{}, err
	}

	correctness := correctnessFraction(*question, sub.Value)
	score := e.computeScore(correctness, elapsed, question.TimeLimitMs, len(quiz.Questions))

	previousScore := 0
	if hadPrevious {
		previousScore = previous.Score
	}
	delta := score - previousScore

	record := domain.AnswerRecord{
		UserID:       userID,
		Value:        sub.Value,
		ServerTimeMs: elapsed,
		Correctness:  correctness,
		Score:        score,
		SubmittedAt:  e.clock.Now(),
	}
	if err := e.answers.Put(ctx, answerKey, record); err != nil {
		return domain.ScoreResult{}, fmt.Errorf("store answer: %w", err)
	}

	total := 0
	if deferred {
		// Deferred attempts do not touch the participant's durable score while
		// in flight; the replay manager folds the attempt total in at the end.
		total, err = e.attemptTotal(ctx, accessCode, userID, sub.Attempt, quiz)
		if err != nil {
			return domain.ScoreResult{}, err
		}
	} else {
		total, err = e.participants.AddScore(ctx, accessCode, userID, domain.KindLive, delta)
		if err != nil {
			return domain.ScoreResult{}, fmt.Errorf("apply score: %w", err)
		}
		if err := e.ranking.UpdateScore(ctx, accessCode, userID, total); err != nil {
			return domain.ScoreResult{}, fmt.Errorf("update ranking: %w", err)
		}
	}

	reason := "score updated"
	if delta == 0 {
		reason = "answer recorded, no score change"
	}
	return domain.ScoreResult{
		ScoreUpdated:  delta != 0,
		ScoreDelta:    delta,
		TotalScore:    total,
		AnswerChanged: hadPrevious,
		Correctness:   correctness,
		Reason:        reason,
	}, nil
}

// AttemptTotal sums the stored answer scores of one deferred attempt.
func (e *ScoringEngine) AttemptTotal(ctx context.Context, accessCode, userID string, attempt int) (int, error) {
	session, err := e.sessions.Get(ctx, accessCode)
	if err != nil {
		return 0, err
	}
	quiz, err := e.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return 0, err
	}
	return e.attemptTotal(ctx, accessCode, userID, attempt, quiz)
}

func (e *ScoringEngine) attemptTotal(ctx context.Context, accessCode, userID string, attempt int, quiz domain.Quiz) (int, error) {
	uids := make([]string, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		uids = append(uids, q.UID)
	}
	records, err := e.answers.ListAttempt(ctx, accessCode, userID, attempt, uids)
	if err != nil {
		return 0, fmt.Errorf("list attempt answers: %w", err)
	}
	total := 0
	for _, r := range records {
		total += r.Score
	}
	return total, nil
}

func (e *ScoringEngine) totalScore(ctx context.Context, accessCode, userID string, p domain.Participant, attempt int, quiz domain.Quiz) (int, error) {
	if attempt > 0 {
		return e.attemptTotal(ctx, accessCode, userID, attempt, quiz)
	}
	return p.Score, nil
}

// computeScore applies the canonical formula:
//
//	score = basePoints * correctness * (1 - alpha * min(1, elapsed/duration))
//
// floored at zero. basePoints is the configured pool divided evenly across the
// session's question count.
func (e *ScoringEngine) computeScore(correctness float64, elapsedMs, durationMs int64, questionCount int) int {
	if correctness <= 0 || questionCount <= 0 {
		return 0
	}
	base := float64(e.cfg.BasePool) / float64(questionCount)
	penalty := 0.0
	if durationMs > 0 {
		penalty = math.Min(1, float64(elapsedMs)/float64(durationMs))
	}
	score := base * correctness * (1 - e.cfg.DecayAlpha*penalty)
	if score < 0 {
		return 0
	}
	return int(math.Round(score))
}

// correctnessFraction evaluates a submission against a question. Multi-select
// questions score max(0, selectedCorrect/totalCorrect -
// selectedIncorrect/totalIncorrect); the other kinds are all-or-nothing.
func correctnessFraction(q domain.Question, v domain.AnswerValue) float64 {
	switch q.Kind {
	case domain.QuestionSingleChoice:
		if len(v.Selected) != 1 {
			return 0
		}
		idx := v.Selected[0]
		if idx < 0 || idx >= len(q.CorrectOptions) || !q.CorrectOptions[idx] {
			return 0
		}
		return 1
	case domain.QuestionMultiChoice:
		totalCorrect, totalIncorrect := 0, 0
		for _, c := range q.CorrectOptions {
			if c {
				totalCorrect++
			} else {
				totalIncorrect++
			}
		}
		if totalCorrect == 0 {
			return 0
		}
		selCorrect, selIncorrect := 0, 0
		for _, idx := range v.Selected {
			if idx < 0 || idx >= len(q.CorrectOptions) {
				selIncorrect++
				continue
			}
			if q.CorrectOptions[idx] {
				selCorrect++
			} else {
				selIncorrect++
			}
		}
		frac := float64(selCorrect) / float64(totalCorrect)
		if totalIncorrect > 0 {
			frac -= float64(selIncorrect) / float64(totalIncorrect)
		} else if selIncorrect > 0 {
			frac = 0
		}
		return math.Max(0, frac)
	case domain.QuestionNumeric:
		if v.Number == nil {
			return 0
		}
		if math.Abs(*v.Number-q.CorrectNumber) <= q.Tolerance {
			return 1
		}
		return 0
	case domain.QuestionText:
		if strings.EqualFold(strings.TrimSpace(v.Text), strings.TrimSpace(q.CorrectText)) {
			return 1
		}
		return 0
	default:
		return 0
	}
}
