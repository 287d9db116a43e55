package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"game-session-service/internal/domain"
)

// ParticipantStore is the durable implementation of app.ParticipantStore.
// Every score mutation is a single SQL statement, so concurrent handlers on
// different instances cannot interleave a read-then-write.
type ParticipantStore struct {
	db *bun.DB
}

func NewParticipantStore(db *bun.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

func (s *ParticipantStore) Get(ctx context.Context, accessCode, userID string, kind domain.ParticipationKind) (domain.Participant, error) {
	row := new(ParticipantRow)
	err := s.db.NewSelect().
		Model(row).
		Where("access_code = ? AND user_id = ? AND kind = ?", accessCode, userID, string(kind)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, fmt.Errorf("select participant: %w", err)
	}
	return participantFromRow(row), nil
}

func (s *ParticipantStore) Upsert(ctx context.Context, accessCode string, p domain.Participant) error {
	row := &ParticipantRow{
		AccessCode:   accessCode,
		UserID:       p.UserID,
		Kind:         string(p.Kind),
		DisplayName:  p.DisplayName,
		Score:        p.Score,
		AttemptCount: p.AttemptCount,
		JoinOrder:    p.JoinOrder,
		JoinedAt:     p.JoinedAt,
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (access_code, user_id, kind) DO UPDATE").
		Set("display_name = EXCLUDED.display_name").
		Set("join_order = EXCLUDED.join_order").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}

func (s *ParticipantStore) List(ctx context.Context, accessCode string) ([]domain.Participant, error) {
	var rows []ParticipantRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("access_code = ?", accessCode).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]domain.Participant, 0, len(rows))
	for i := range rows {
		out = append(out, participantFromRow(&rows[i]))
	}
	return out, nil
}

func (s *ParticipantStore) AddScore(ctx context.Context, accessCode, userID string, kind domain.ParticipationKind, delta int) (int, error) {
	var score int
	err := s.db.NewUpdate().
		Model((*ParticipantRow)(nil)).
		Set("score = score + ?", delta).
		Where("access_code = ? AND user_id = ? AND kind = ?", accessCode, userID, string(kind)).
		Returning("score").
		Scan(ctx, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrParticipantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}
	return score, nil
}

func (s *ParticipantStore) SetScore(ctx context.Context, accessCode, userID string, kind domain.ParticipationKind, score int) error {
	res, err := s.db.NewUpdate().
		Model((*ParticipantRow)(nil)).
		Set("score = ?", score).
		Where("access_code = ? AND user_id = ? AND kind = ?", accessCode, userID, string(kind)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("replace score: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

// SetBestDeferredScore relies on the WHERE clause for the max comparison: the
// conditional update is atomic in Postgres, so two racing finalizations both
// settle on the higher score.
func (s *ParticipantStore) SetBestDeferredScore(ctx context.Context, accessCode, userID string, score int) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*ParticipantRow)(nil)).
		Set("score = ?", score).
		Where("access_code = ? AND user_id = ? AND kind = ? AND score < ?", accessCode, userID, string(domain.KindDeferred), score).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update best deferred score: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update best deferred score: %w", err)
	}
	return affected > 0, nil
}

func (s *ParticipantStore) IncrementAttempt(ctx context.Context, accessCode, userID string) (int, error) {
	var attempt int
	err := s.db.NewUpdate().
		Model((*ParticipantRow)(nil)).
		Set("attempt_count = attempt_count + 1").
		Where("access_code = ? AND user_id = ? AND kind = ?", accessCode, userID, string(domain.KindDeferred)).
		Returning("attempt_count").
		Scan(ctx, &attempt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrParticipantNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment attempt: %w", err)
	}
	return attempt, nil
}

func participantFromRow(row *ParticipantRow) domain.Participant {
	return domain.Participant{
		UserID:       row.UserID,
		DisplayName:  row.DisplayName,
		Kind:         domain.ParticipationKind(row.Kind),
		Score:        row.Score,
		AttemptCount: row.AttemptCount,
		JoinOrder:    row.JoinOrder,
		JoinedAt:     row.JoinedAt,
	}
}
