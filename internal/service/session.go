package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/chat"
	"github.com/chatvault/server-go/internal/config"
	apperrors "github.com/chatvault/server-go/internal/errors"
	"github.com/chatvault/server-go/internal/metrics"
	"github.com/chatvault/server-go/internal/model"
	"github.com/chatvault/server-go/internal/repository"
	"github.com/chatvault/server-go/internal/sse"
	"github.com/chatvault/server-go/internal/util"
)

const publishTimeout = 5 * time.Second

// Publisher pushes events toward a user's live subscribers.
type Publisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

// InitializeResult is what an initialize attempt resolves to. Every waiter
// on the same attempt receives the same value.
type InitializeResult struct {
	Success   bool   `json:"success"`
	Connected bool   `json:"connected"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ExistingSessionResult struct {
	HasSession  bool       `json:"hasSession"`
	IsActive    bool       `json:"isActive"`
	Connected   bool       `json:"connected"`
	PhoneNumber *string    `json:"phoneNumber,omitempty"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
}

type SessionStatusResult struct {
	Connected      bool               `json:"connected"`
	State          model.SessionState `json:"state,omitempty"`
	HasPairingCode bool               `json:"hasPairingCode"`
	Active         bool               `json:"active"`
	PhoneNumber    *string            `json:"phoneNumber,omitempty"`
	LastUsedAt     *time.Time         `json:"lastUsedAt,omitempty"`
}

type DisconnectResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DeleteSessionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionService keeps at most one logical chat connection per user. All
// connection lifecycle flows through it: concurrent initialize calls are
// collapsed onto one attempt, client events drive the handle state machine,
// and durable writes never gate readiness.
type SessionService struct {
	factory   chat.Factory
	sessions  repository.SessionRepository
	convs     repository.ConversationRepository
	msgs      repository.MessageRepository
	publisher Publisher
	cipher    *util.Cipher

	reg            *registry
	initTimeout    time.Duration
	persistTimeout time.Duration
	statusTimeout  time.Duration
}

func NewSessionService(
	factory chat.Factory,
	sessionRepo repository.SessionRepository,
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	publisher Publisher,
	cipher *util.Cipher,
	initTimeout time.Duration,
	persistTimeout time.Duration,
) *SessionService {
	return &SessionService{
		factory:        factory,
		sessions:       sessionRepo,
		convs:          conversationRepo,
		msgs:           messageRepo,
		publisher:      publisher,
		cipher:         cipher,
		reg:            newRegistry(),
		initTimeout:    initTimeout,
		persistTimeout: persistTimeout,
		statusTimeout:  config.StatusReadTimeout,
	}
}

// Initialize establishes (or joins the establishment of) the user's chat
// connection. At most one attempt runs per user at a time; every concurrent
// caller receives the result of that single attempt. The call returns when
// the attempt resolves or ctx expires, whichever comes first.
func (s *SessionService) Initialize(ctx context.Context, userID string) InitializeResult {
	if userID == "" {
		return InitializeResult{Error: "userId is required"}
	}

	flight, created, ready := s.reg.beginFlight(userID)
	if ready {
		return InitializeResult{Success: true, Connected: true, Message: "already connected"}
	}
	if !created {
		metrics.ConnectsDeduped.Inc()
		log.Debug().Str("userId", userID).Msg("joining in-flight initialization")
		return flight.wait(ctx)
	}

	metrics.ConnectsStarted.Inc()
	go s.runInitialize(userID, flight)
	return flight.wait(ctx)
}

// runInitialize is the single attempt all concurrent Initialize callers
// share. It runs detached from any caller context: a caller that gives up
// waiting does not abort the connection for the others.
func (s *SessionService) runInitialize(userID string, flight *initFlight) {
	start := time.Now()
	log.Info().Str("userId", userID).Msg("initializing chat session")

	if stale := s.reg.takeHandle(userID); stale != nil {
		s.teardownHandle(stale, "replaced by new initialization")
	}

	client, err := s.factory.NewClient(userID, s.loadSessionBlob(userID))
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("initialize: construct client")
		s.resolveFlight(userID, flight, InitializeResult{Error: "client construction failed: " + err.Error()})
		metrics.ConnectsFailed.Inc()
		return
	}

	handle := newClientHandle(userID, client)
	s.reg.setHandle(handle)
	metrics.ActiveHandles.Set(float64(s.reg.handleCount()))

	// The pump must be draining before Connect so no early event is lost.
	go s.pumpEvents(handle)

	connectCtx, cancel := context.WithTimeout(context.Background(), s.initTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("initialize: connect")
		s.teardownHandle(handle, "connect rejected")
		s.resolveFlight(userID, flight, InitializeResult{Error: "connect failed: " + err.Error()})
		metrics.ConnectsFailed.Inc()
		return
	}

	select {
	case <-flight.done:
		// resolved by the event pump: ready, auth failure or disconnect
	case <-time.After(s.initTimeout):
		log.Warn().Str("userId", userID).Dur("timeout", s.initTimeout).Msg("initialization timed out")
		metrics.ConnectsTimedOut.Inc()
		s.teardownHandle(handle, "initialization timeout")
		s.resolveFlight(userID, flight, InitializeResult{Error: "initialization timed out"})
	}

	result := flight.wait(context.Background())
	if result.Success {
		metrics.ConnectsSucceeded.Inc()
	} else {
		metrics.ConnectsFailed.Inc()
	}
	metrics.TimeSince(metrics.InitializeDuration, start)
}

// CheckExistingSession reports the user's stored session and, when the
// record says active but no live connection exists, restarts one. A restart
// that fails demotes the stored record to inactive.
func (s *SessionService) CheckExistingSession(ctx context.Context, userID string) (*ExistingSessionResult, error) {
	if userID == "" {
		return nil, apperrors.MissingRequired("userId")
	}

	record, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if record == nil {
		return &ExistingSessionResult{}, nil
	}

	result := &ExistingSessionResult{
		HasSession:  true,
		IsActive:    record.Active,
		Connected:   s.IsReady(userID),
		PhoneNumber: record.PhoneNumber,
		LastUsedAt:  record.LastUsedAt,
	}

	if record.Active && !result.Connected {
		log.Info().Str("userId", userID).Msg("stored session active but not connected, re-initializing")
		initResult := s.Initialize(ctx, userID)
		result.Connected = initResult.Success && initResult.Connected
		if !initResult.Success {
			if err := s.sessions.SetActive(ctx, userID, false); err != nil {
				log.Error().Err(err).Str("userId", userID).Msg("demote stale session")
			}
			result.IsActive = false
		}
	}

	return result, nil
}

// IsReady reports whether the user has a live, fully established
// connection. Registry-only, no I/O.
func (s *SessionService) IsReady(userID string) bool {
	h := s.reg.handle(userID)
	return h != nil && h.State() == model.StateReady && h.client.Identity() != nil
}

// PairingCode returns the cached pairing code for a session still awaiting
// pairing.
func (s *SessionService) PairingCode(userID string) (string, bool) {
	return s.reg.pairingCode(userID)
}

// GetStatus merges live registry state with one bounded durable read. Live
// fields win where the two disagree.
func (s *SessionService) GetStatus(ctx context.Context, userID string) (*SessionStatusResult, error) {
	if userID == "" {
		return nil, apperrors.MissingRequired("userId")
	}

	result := &SessionStatusResult{Connected: s.IsReady(userID)}
	if h := s.reg.handle(userID); h != nil {
		result.State = h.State()
	}
	_, result.HasPairingCode = s.reg.pairingCode(userID)

	dbCtx, cancel := context.WithTimeout(ctx, s.statusTimeout)
	defer cancel()
	record, err := s.sessions.FindByUserID(dbCtx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if record != nil {
		result.Active = record.Active
		result.PhoneNumber = record.PhoneNumber
		result.LastUsedAt = record.LastUsedAt
	}
	if result.Connected {
		result.Active = true
	}

	return result, nil
}

// Disconnect tears down the user's live connection, resolves any pending
// initialize attempt and marks the stored session inactive. Idempotent: no
// live connection is still a success.
func (s *SessionService) Disconnect(ctx context.Context, userID string) DisconnectResult {
	if userID == "" {
		return DisconnectResult{Message: "userId is required"}
	}

	handle := s.reg.takeHandle(userID)
	s.reg.clearPairingCode(userID)
	s.resolveCurrentFlight(userID, InitializeResult{Error: "connection closed"})

	if handle != nil {
		handle.setState(model.StateDisconnected)
		handle.client.Disconnect()
		metrics.ActiveHandles.Set(float64(s.reg.handleCount()))
		log.Info().Str("userId", userID).Str("handleId", handle.id).Msg("chat session disconnected by user")
	}

	dbCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.sessions.SetActive(dbCtx, userID, false); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("disconnect: mark inactive")
	}

	if handle != nil {
		s.publish(userID, sse.EventDisconnected, map[string]any{"reason": "disconnected by user"})
		return DisconnectResult{Success: true, Message: "disconnected"}
	}
	return DisconnectResult{Success: true, Message: "no active connection"}
}

// DeleteSession disconnects and removes the stored session record. Archived
// conversations and messages stay.
func (s *SessionService) DeleteSession(ctx context.Context, userID string) DeleteSessionResult {
	s.Disconnect(ctx, userID)

	dbCtx, cancel := context.WithTimeout(ctx, s.persistTimeout)
	defer cancel()
	if err := s.sessions.Delete(dbCtx, userID); err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("delete session record")
		return DeleteSessionResult{Success: true, Message: "disconnected; session record removal failed"}
	}

	log.Info().Str("userId", userID).Msg("session deleted")
	return DeleteSessionResult{Success: true, Message: "session deleted"}
}

// readyClient hands other services the user's live client. Access stays
// mediated here so the handle remains the client's only owner.
func (s *SessionService) readyClient(userID string) (chat.Client, error) {
	h := s.reg.handle(userID)
	if h == nil || h.State() != model.StateReady {
		return nil, apperrors.SessionNotReady()
	}
	return h.client, nil
}

// resolveFlight settles the attempt and drops it from the registry, so a
// later Initialize always starts fresh.
func (s *SessionService) resolveFlight(userID string, flight *initFlight, result InitializeResult) {
	flight.settle(result)
	s.reg.takeFlight(userID, flight)
}

func (s *SessionService) resolveCurrentFlight(userID string, result InitializeResult) {
	if f := s.reg.flight(userID); f != nil {
		s.resolveFlight(userID, f, result)
	}
}

// teardownHandle removes h from the registry when still current and closes
// its client. Safe on handles that never connected.
func (s *SessionService) teardownHandle(h *clientHandle, reason string) {
	h.setState(model.StateDisconnected)
	removed := s.reg.removeHandle(h)
	h.client.Disconnect()
	if removed {
		metrics.ActiveHandles.Set(float64(s.reg.handleCount()))
	}
	log.Debug().Str("userId", h.userID).Str("handleId", h.id).Str("reason", reason).Msg("client handle torn down")
}

// loadSessionBlob fetches and decrypts stored credentials. Best effort: any
// failure here means a fresh pairing, never a failed initialize.
func (s *SessionService) loadSessionBlob(userID string) []byte {
	ctx, cancel := s.persistCtx()
	defer cancel()

	record, err := s.sessions.FindByUserID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("initialize: load stored session")
		return nil
	}
	if record == nil || record.SessionData == nil || *record.SessionData == "" {
		return nil
	}

	raw, err := s.cipher.Decrypt(*record.SessionData)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("initialize: decrypt stored session, fresh pairing required")
		return nil
	}
	return []byte(raw)
}

// saveBlob encrypts and stores the client's current credentials. A client
// that has no credentials yet is not an error.
func (s *SessionService) saveBlob(ctx context.Context, h *clientHandle) error {
	blob := h.client.SessionBlob()
	if len(blob) == 0 {
		return nil
	}
	encrypted, err := s.cipher.Encrypt(string(blob))
	if err != nil {
		return fmt.Errorf("encrypt session blob: %w", err)
	}
	if _, err := s.sessions.Upsert(ctx, model.UpsertSessionParams{UserID: h.userID, SessionData: &encrypted}); err != nil {
		return fmt.Errorf("store session blob: %w", err)
	}
	return nil
}

func (s *SessionService) persistCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.persistTimeout)
}

// current reports whether h is still the user's registered handle. Event
// handlers bail out on stale handles so a torn-down client cannot touch
// newer state.
func (s *SessionService) current(h *clientHandle) bool {
	return s.reg.handle(h.userID) == h
}

func (s *SessionService) publish(userID, eventType string, data any) {
	event, err := sse.NewEvent(eventType, data)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("marshal push event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, userID, event); err != nil {
		log.Error().Err(err).Str("userId", userID).Str("type", eventType).Msg("publish push event")
	}
}
