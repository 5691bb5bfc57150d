package model

// SessionState tracks a live client handle through its lifecycle. A handle
// may bounce between initializing and awaiting_pairing while the user types
// the code on their device; every other transition moves forward only.
// Disconnected and failed are terminal for the handle that reached them.
type SessionState string

const (
	StateInitializing    SessionState = "initializing"
	StateAwaitingPairing SessionState = "awaiting_pairing"
	StateAuthenticated   SessionState = "authenticated"
	StateReady           SessionState = "ready"
	StateDisconnected    SessionState = "disconnected"
	StateFailed          SessionState = "failed"
)

type ConversationKind string

const (
	ConversationIndividual ConversationKind = "individual"
	ConversationGroup      ConversationKind = "group"
)
