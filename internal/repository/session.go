package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/chatvault/server-go/internal/model"
)

type SessionRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.Session, error)
	ListActive(ctx context.Context) ([]model.Session, error)
	// Upsert creates the row if missing. Nil params leave the stored value
	// untouched, so callers can persist just the blob or just the number.
	Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error)
	SetActive(ctx context.Context, userID string, active bool) error
	Delete(ctx context.Context, userID string) error
}

type sessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByUserID(ctx context.Context, userID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE user_id = $1
	`, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) ListActive(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE active = true
		ORDER BY last_used_at DESC NULLS LAST
	`)
	return sessions, err
}

func (r *sessionRepo) Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (user_id, phone_number, session_data)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			phone_number = COALESCE(EXCLUDED.phone_number, sessions.phone_number),
			session_data = COALESCE(EXCLUDED.session_data, sessions.session_data),
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.PhoneNumber, params.SessionData)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) SetActive(ctx context.Context, userID string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			active = $2,
			last_used_at = CASE WHEN $2 THEN NOW() ELSE last_used_at END,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, active)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID)
	return err
}
