package model

import (
	"time"
)

type User struct {
	ID              string     `db:"id" json:"id"`
	DisplayName     *string    `db:"display_name" json:"displayName,omitempty"`
	APITokenHash    string     `db:"api_token_hash" json:"-"`
	RateLimitPerMin int        `db:"rate_limit_per_minute" json:"rateLimitPerMinute"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	DisabledAt      *time.Time `db:"disabled_at" json:"disabledAt,omitempty"`
}

type CreateUserParams struct {
	DisplayName     *string
	APITokenHash    string
	RateLimitPerMin int
}
