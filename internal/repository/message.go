package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/chatvault/server-go/internal/model"
)

type MessageRepository interface {
	Upsert(ctx context.Context, params model.UpsertMessageParams) (*model.Message, error)
	// BulkUpsert writes a whole batch in one statement. The statement is
	// atomic: any bad record fails the batch, and the caller falls back to
	// Upsert per record.
	BulkUpsert(ctx context.Context, records []model.UpsertMessageParams) (int64, error)
	ListByChat(ctx context.Context, userID, chatID string, limit, offset int) ([]model.Message, error)
	CountByChat(ctx context.Context, userID, chatID string) (int, error)
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

type messageRepo struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepo{db: db}
}

const messageUpsertConflict = `
	ON CONFLICT (user_id, message_id) DO UPDATE SET
		chat_id = EXCLUDED.chat_id,
		sender_id = EXCLUDED.sender_id,
		sender_name = EXCLUDED.sender_name,
		body = EXCLUDED.body,
		message_type = EXCLUDED.message_type,
		from_me = EXCLUDED.from_me,
		sent_at = EXCLUDED.sent_at,
		updated_at = NOW()`

func (r *messageRepo) Upsert(ctx context.Context, params model.UpsertMessageParams) (*model.Message, error) {
	var msg model.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages
			(user_id, chat_id, message_id, sender_id, sender_name, body, message_type, from_me, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`+
		messageUpsertConflict+`
		RETURNING *
	`, params.UserID, params.ChatID, params.MessageID, params.SenderID,
		params.SenderName, params.Body, params.MessageType, params.FromMe, params.SentAt)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepo) BulkUpsert(ctx context.Context, records []model.UpsertMessageParams) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	const cols = 9
	args := make([]interface{}, 0, len(records)*cols)
	for _, m := range records {
		args = append(args, m.UserID, m.ChatID, m.MessageID, m.SenderID,
			m.SenderName, m.Body, m.MessageType, m.FromMe, m.SentAt)
	}

	query := `
		INSERT INTO messages
			(user_id, chat_id, message_id, sender_id, sender_name, body, message_type, from_me, sent_at)
		VALUES ` + valuesPlaceholders(len(records), cols) + messageUpsertConflict

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *messageRepo) ListByChat(ctx context.Context, userID, chatID string, limit, offset int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.SelectContext(ctx, &msgs, `
		SELECT * FROM messages
		WHERE user_id = $1 AND chat_id = $2
		ORDER BY sent_at DESC, message_id ASC
		LIMIT $3 OFFSET $4
	`, userID, chatID, limit, offset)
	return msgs, err
}

func (r *messageRepo) CountByChat(ctx context.Context, userID, chatID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages WHERE user_id = $1 AND chat_id = $2
	`, userID, chatID)
	return count, err
}

func (r *messageRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM messages WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
