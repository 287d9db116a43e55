package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"game-session-service/internal/domain"
)

// SessionArchive writes the durable session record. Called on creation and on
// end-of-session, always before ephemeral state is cleared.
type SessionArchive struct {
	db *bun.DB
}

func NewSessionArchive(db *bun.DB) *SessionArchive {
	return &SessionArchive{db: db}
}

func (a *SessionArchive) SaveSession(ctx context.Context, session domain.Session) error {
	row := &SessionRow{
		AccessCode:      session.AccessCode,
		QuizID:          session.QuizID,
		Status:          string(session.Status),
		Mode:            string(session.Mode),
		QuestionUIDs:    session.QuestionUIDs,
		CurrentQuestion: session.CurrentQuestion,
		AnswersLocked:   session.AnswersLocked,
		CreatedAt:       session.CreatedAt,
	}
	_, err := a.db.NewInsert().
		Model(row).
		On("CONFLICT (access_code) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("current_question = EXCLUDED.current_question").
		Set("answers_locked = EXCLUDED.answers_locked").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}
