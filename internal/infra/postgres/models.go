package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

// SessionRow is the durable session record. Live mutable state is served from
// the shared store; this row is written at creation and finalization.
type SessionRow struct {
	bun.BaseModel `bun:"table:game_sessions"`

	AccessCode      string    `bun:"access_code,pk"`
	QuizID          string    `bun:"quiz_id,notnull"`
	Status          string    `bun:"status,notnull"`
	Mode            string    `bun:"mode,notnull"`
	QuestionUIDs    []string  `bun:"question_uids,array"`
	CurrentQuestion int       `bun:"current_question,notnull,default:-1"`
	AnswersLocked   bool      `bun:"answers_locked,notnull,default:false"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ParticipantRow keeps one score per participation kind: the live row and the
// deferred row of the same user are independent records.
type ParticipantRow struct {
	bun.BaseModel `bun:"table:participants"`

	AccessCode   string    `bun:"access_code,pk"`
	UserID       string    `bun:"user_id,pk"`
	Kind         string    `bun:"kind,pk"`
	DisplayName  string    `bun:"display_name,notnull"`
	Score        int       `bun:"score,notnull,default:0"`
	AttemptCount int       `bun:"attempt_count,notnull,default:0"`
	JoinOrder    int       `bun:"join_order,notnull,default:0"`
	JoinedAt     time.Time `bun:"joined_at,notnull,default:current_timestamp"`
}
