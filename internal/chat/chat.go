// Package chat defines the boundary to the external chat network. The wire
// protocol stays behind the Client interface; a driver is chosen at startup
// through configuration and everything above this package is driver-agnostic.
package chat

import (
	"context"
)

type EventKind string

const (
	EventPairingCode   EventKind = "pairing-code"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth-failure"
	EventDisconnected  EventKind = "disconnected"
	EventMessage       EventKind = "message"
)

// Event is one item on a client's event stream. Exactly one payload field is
// meaningful per kind: Code for pairing-code, Reason for auth-failure and
// disconnected, Message for message.
type Event struct {
	Kind    EventKind
	Code    string
	Reason  string
	Message *Message
}

// Identity describes the account the client is logged in as.
type Identity struct {
	ID          string
	PhoneNumber string
	DisplayName string
}

// Chat is a conversation as the network reports it.
type Chat struct {
	ID            string
	Name          string
	IsGroup       bool
	Participants  []string
	LastMessageAt int64 // epoch millis, zero when unknown
}

// Message is a raw network message. Timestamp may be epoch seconds or epoch
// millis depending on which server path produced it; zero means unknown.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	NotifyName string
	Body       string
	Type       string
	Timestamp  int64
	FromMe     bool
}

// Client is one live logical connection to the external chat network.
// Connect returns once the connect command has been accepted; progress past
// that point arrives on Events. The events channel closes after Disconnect
// or a terminal failure. Disconnect is safe to call more than once.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	Events() <-chan Event

	// Identity returns nil until the session is authenticated.
	Identity() *Identity
	// SessionBlob returns the opaque credential state to persist, nil if the
	// client has none yet.
	SessionBlob() []byte

	Chats(ctx context.Context) ([]Chat, error)
	// History returns messages for the chat, oldest first. limit <= 0 means
	// no cap.
	History(ctx context.Context, chatID string, limit int) ([]Message, error)
	// AvatarURL is best effort; drivers return "" when the network has no
	// avatar for the contact.
	AvatarURL(ctx context.Context, contactID string) (string, error)
}

// Factory constructs clients. sessionBlob is the previously persisted
// credential state, nil for a fresh pairing.
type Factory interface {
	NewClient(userID string, sessionBlob []byte) (Client, error)
}
