package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for an access code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in session")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question uid or index is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrGameNotActive is returned for play actions outside the active state.
	ErrGameNotActive = errors.New("game not active")
	// ErrAnswersLocked is returned when the moderator has locked submissions.
	ErrAnswersLocked = errors.New("answers are locked")
	// ErrTimerStopped is returned when the question's timer has been stopped.
	ErrTimerStopped = errors.New("timer stopped")
	// ErrTimeExpired is returned when the acceptance window has run out.
	ErrTimeExpired = errors.New("time expired")
	// ErrInvalidAnswer is returned for malformed submissions.
	ErrInvalidAnswer = errors.New("invalid answer")
	// ErrReplayInProgress is returned when a user starts a second concurrent replay.
	ErrReplayInProgress = errors.New("replay already in progress")
)

// ReasonCode maps a domain error to the wire-level reason code exposed to
// clients. Unknown errors map to a generic failure so infrastructure details
// never leak to participants.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrParticipantNotFound):
		return "ParticipantNotFound"
	case errors.Is(err, ErrQuizNotFound):
		return "QuizNotFound"
	case errors.Is(err, ErrQuestionNotFound):
		return "QuestionNotFound"
	case errors.Is(err, ErrGameNotActive):
		return "GameNotActive"
	case errors.Is(err, ErrAnswersLocked):
		return "AnswersLocked"
	case errors.Is(err, ErrTimerStopped):
		return "TimerStopped"
	case errors.Is(err, ErrTimeExpired):
		return "TimeExpired"
	case errors.Is(err, ErrInvalidAnswer):
		return "InvalidAnswer"
	case errors.Is(err, ErrReplayInProgress):
		return "ReplayInProgress"
	default:
		return "InternalError"
	}
}
