package service

import (
	"time"

	"github.com/chatvault/server-go/internal/chat"
	"github.com/chatvault/server-go/internal/config"
	"github.com/chatvault/server-go/internal/model"
)

const unknownSender = "Unknown"

// millisFloor is the smallest value treated as a millisecond timestamp.
// Anything below it is a second-precision timestamp from an older client.
const millisFloor = 1_000_000_000_000

// normalizeMessage maps a raw client message onto archive parameters.
// Drivers disagree on timestamp precision and sender naming; everything
// stored goes through here first so the archive stays uniform.
func normalizeMessage(userID string, raw chat.Message) model.UpsertMessageParams {
	sender := raw.NotifyName
	if sender == "" {
		sender = raw.SenderID
	}
	if sender == "" {
		sender = unknownSender
	}

	msgType := raw.Type
	if msgType == "" {
		msgType = "text"
	}

	return model.UpsertMessageParams{
		UserID:      userID,
		ChatID:      raw.ChatID,
		MessageID:   raw.ID,
		SenderID:    raw.SenderID,
		SenderName:  sender,
		Body:        raw.Body,
		MessageType: msgType,
		FromMe:      raw.FromMe,
		SentAt:      normalizeTimestamp(raw.Timestamp),
	}
}

// normalizeTimestamp accepts seconds or milliseconds and returns a UTC
// time. Zero or negative means the client did not know; the receive time
// stands in.
func normalizeTimestamp(ts int64) time.Time {
	if ts <= 0 {
		return time.Now().UTC()
	}
	if ts < millisFloor {
		ts *= 1000
	}
	return time.UnixMilli(ts).UTC()
}

// previewText caps notification previews. Truncation is by rune so a
// multi-byte character is never split.
func previewText(body string) string {
	runes := []rune(body)
	if len(runes) <= config.MessagePreviewMaxLen {
		return body
	}
	return string(runes[:config.MessagePreviewMaxLen]) + "..."
}
