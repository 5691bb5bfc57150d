package model

import (
	"encoding/json"
	"time"
)

type Conversation struct {
	ID               string           `db:"id" json:"id"`
	UserID           string           `db:"user_id" json:"userId"`
	ChatID           string           `db:"chat_id" json:"chatId"`
	Name             string           `db:"name" json:"name"`
	Kind             ConversationKind `db:"kind" json:"kind"`
	ParticipantCount int              `db:"participant_count" json:"participantCount"`
	Participants     *json.RawMessage `db:"participants" json:"participants,omitempty"`
	LastMessageAt    *time.Time       `db:"last_message_at" json:"lastMessageAt,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
}

type UpsertConversationParams struct {
	UserID           string
	ChatID           string
	Name             string
	Kind             ConversationKind
	ParticipantCount int
	Participants     *json.RawMessage
}
