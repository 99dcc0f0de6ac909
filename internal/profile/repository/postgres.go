package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"memodams/backend/internal/db"
	"memodams/backend/internal/profile/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a profile repository backed by db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, accountID string) (*domain.Profile, error) {
	var p domain.Profile
	var birthday sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, bio, avatar_url, birthday, security_question, security_answer_hash, created_at, updated_at
		FROM profiles WHERE account_id = $1`, accountID).
		Scan(&p.AccountID, &p.Bio, &p.AvatarURL, &birthday, &p.SecurityQuestion, &p.SecurityAnswerHash, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Birthday = db.NullTime(birthday)
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *PostgresRepository) Merge(ctx context.Context, accountID string, patch domain.Patch) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (account_id, bio, avatar_url, birthday, security_question, security_answer_hash, created_at, updated_at)
		VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), $4, COALESCE($5, ''), COALESCE($6, ''), $7, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			bio                  = COALESCE($2, profiles.bio),
			avatar_url           = COALESCE($3, profiles.avatar_url),
			birthday             = COALESCE(profiles.birthday, $4),
			security_question    = COALESCE($5, profiles.security_question),
			security_answer_hash = COALESCE($6, profiles.security_answer_hash),
			updated_at           = $7`,
		accountID, nullString(patch.Bio), nullString(patch.AvatarURL), db.TimeOrNull(patch.Birthday),
		nullString(patch.SecurityQuestion), nullString(patch.SecurityAnswerHash), time.Now().UTC())
	return err
}
