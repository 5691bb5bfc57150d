package model

import (
	"time"
)

type Message struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	ChatID      string    `db:"chat_id" json:"chatId"`
	MessageID   string    `db:"message_id" json:"messageId"`
	SenderID    string    `db:"sender_id" json:"senderId"`
	SenderName  string    `db:"sender_name" json:"senderName"`
	Body        string    `db:"body" json:"body"`
	MessageType string    `db:"message_type" json:"type"`
	FromMe      bool      `db:"from_me" json:"fromMe"`
	SentAt      time.Time `db:"sent_at" json:"sentAt"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertMessageParams struct {
	UserID      string
	ChatID      string
	MessageID   string
	SenderID    string
	SenderName  string
	Body        string
	MessageType string
	FromMe      bool
	SentAt      time.Time
}
