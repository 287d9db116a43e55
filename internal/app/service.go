package app

import (
	"context"

	"github.com/jonboulle/clockwork"

	"game-session-service/internal/domain"
)

// GameService bundles the core engines behind one constructor so transports
// and the CLI wire a single dependency.
type GameService struct {
	Timers       *TimerAuthority
	Scoring      *ScoringEngine
	Leaderboard  *LeaderboardEngine
	Replays      *ReplayManager
	Orchestrator *Orchestrator
}

// Deps is everything the engines need from infrastructure.
type Deps struct {
	Sessions     SessionStore
	Archive      SessionArchive
	Participants ParticipantStore
	Answers      AnswerStore
	Timers       TimerStore
	Ranking      RankingStore
	Registry     ReplayRegistry
	Quizzes      QuizRepository
	Broadcaster  Broadcaster
	Clock        clockwork.Clock
}

// Config is the tunable surface of the service.
type Config struct {
	Scoring   ScoringConfig
	Replay    ReplayConfig
	Reveal    RevealPolicy
	JoinBonus int
}

func NewGameService(cfg Config, deps Deps) *GameService {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = NopBroadcaster{}
	}

	timers := NewTimerAuthority(deps.Timers, deps.Clock)
	scoring := NewScoringEngine(cfg.Scoring, deps.Sessions, deps.Participants, deps.Answers, deps.Ranking, timers, deps.Quizzes, deps.Clock)
	leaderboard := NewLeaderboardEngine(deps.Participants, deps.Ranking, cfg.JoinBonus, deps.Clock)
	replays := NewReplayManager(cfg.Replay, deps.Registry, deps.Sessions, deps.Participants, deps.Answers, timers, scoring, leaderboard, deps.Quizzes, deps.Clock)
	orchestrator := NewOrchestrator(deps.Sessions, deps.Archive, deps.Participants, deps.Answers, timers, leaderboard, deps.Ranking, deps.Quizzes, deps.Broadcaster, deps.Clock, cfg.Reveal)

	return &GameService{
		Timers:       timers,
		Scoring:      scoring,
		Leaderboard:  leaderboard,
		Replays:      replays,
		Orchestrator: orchestrator,
	}
}

// SubmitAnswer scores a live submission and, when a deferred replay is in
// flight for the submitter, nudges its FSM so it can advance early.
func (s *GameService) SubmitAnswer(ctx context.Context, accessCode, userID string, sub domain.AnswerSubmission) (domain.ScoreResult, error) {
	result, err := s.Scoring.SubmitAnswer(ctx, accessCode, userID, sub)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	if sub.Attempt > 0 {
		if rs, ok := s.Replays.Resume(accessCode, userID); ok && rs.Attempt() == sub.Attempt {
			rs.NotifyAnswered(sub.QuestionUID)
		}
	}
	return result, nil
}
