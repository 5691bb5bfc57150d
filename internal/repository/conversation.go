package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chatvault/server-go/internal/model"
)

type ConversationRepository interface {
	FindByUserAndChatID(ctx context.Context, userID, chatID string) (*model.Conversation, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
	Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error)
	// TouchLastMessageAt moves last_message_at forward only; re-archiving old
	// history never rewinds it.
	TouchLastMessageAt(ctx context.Context, userID, chatID string, at time.Time) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

type conversationRepo struct {
	db *sqlx.DB
}

func NewConversationRepository(db *sqlx.DB) ConversationRepository {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) FindByUserAndChatID(ctx context.Context, userID, chatID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		SELECT * FROM conversations WHERE user_id = $1 AND chat_id = $2
	`, userID, chatID)
	return HandleNotFound(&conv, err)
}

func (r *conversationRepo) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.SelectContext(ctx, &convs, `
		SELECT * FROM conversations
		WHERE user_id = $1
		ORDER BY last_message_at DESC NULLS LAST, chat_id ASC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return convs, err
}

func (r *conversationRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM conversations WHERE user_id = $1
	`, userID)
	return count, err
}

func (r *conversationRepo) Upsert(ctx context.Context, params model.UpsertConversationParams) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.GetContext(ctx, &conv, `
		INSERT INTO conversations
			(user_id, chat_id, name, kind, participant_count, participants)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			participant_count = EXCLUDED.participant_count,
			participants = COALESCE(EXCLUDED.participants, conversations.participants),
			updated_at = NOW()
		RETURNING *
	`, params.UserID, params.ChatID, params.Name, params.Kind,
		params.ParticipantCount, params.Participants)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) TouchLastMessageAt(ctx context.Context, userID, chatID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			last_message_at = GREATEST(COALESCE(last_message_at, 'epoch'::timestamptz), $3),
			updated_at = NOW()
		WHERE user_id = $1 AND chat_id = $2
	`, userID, chatID, at)
	return err
}

func (r *conversationRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM conversations WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
