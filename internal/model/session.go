package model

import (
	"time"
)

// Session is the durable record of a user's link to the external chat
// network. SessionData holds the opaque (optionally encrypted) credential
// blob handed back by the chat client; Active marks whether the link was
// live when last observed.
type Session struct {
	UserID      string     `db:"user_id" json:"userId"`
	PhoneNumber *string    `db:"phone_number" json:"phoneNumber,omitempty"`
	SessionData *string    `db:"session_data" json:"-"`
	Active      bool       `db:"active" json:"active"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

type UpsertSessionParams struct {
	UserID      string
	PhoneNumber *string
	SessionData *string
}
