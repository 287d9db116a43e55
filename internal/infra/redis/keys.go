package redis

import (
	"fmt"

	"game-session-service/internal/app"
	"game-session-service/internal/domain"
)

// Key layout of the ephemeral session state. Everything is namespaced by
// access code so archival can clear one session without touching others.
func sessionKey(accessCode string) string {
	return "game:session:" + accessCode
}

func quizKey(quizID string) string {
	return "game:quiz:" + quizID
}

// answerHashKey returns the hash holding answer records for one question.
// Deferred attempts get their own hash so a new attempt never reads the
// previous one's records; the hash field is the user id.
func answerHashKey(key app.AnswerKey) string {
	if key.Attempt > 0 {
		return fmt.Sprintf("game:answers:%s:%s:attempt:%d", key.AccessCode, key.QuestionUID, key.Attempt)
	}
	return fmt.Sprintf("game:answers:%s:%s", key.AccessCode, key.QuestionUID)
}

func timerKey(key domain.TimerKey) string {
	if key.UserID != "" {
		return fmt.Sprintf("game:timer:%s:%s:user:%s:attempt:%d", key.AccessCode, key.QuestionUID, key.UserID, key.Attempt)
	}
	return fmt.Sprintf("game:timer:%s:%s", key.AccessCode, key.QuestionUID)
}

func rankingKey(accessCode string) string {
	return "game:leaderboard:" + accessCode
}

func joinSeqKey(accessCode string) string {
	return "game:joinseq:" + accessCode
}

func joinOrderKey(accessCode string) string {
	return "game:joinorder:" + accessCode
}

func snapshotKey(accessCode string) string {
	return "game:snapshot:" + accessCode
}
