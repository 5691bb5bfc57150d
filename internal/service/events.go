package service

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/chat"
	"github.com/chatvault/server-go/internal/metrics"
	"github.com/chatvault/server-go/internal/model"
	"github.com/chatvault/server-go/internal/sse"
	"github.com/chatvault/server-go/internal/util"
)

// pumpEvents drains h's event stream until the client closes it. Events are
// handled one at a time in arrival order; an event arriving while its
// predecessor is still being handled waits, it is never handled
// re-entrantly.
func (s *SessionService) pumpEvents(h *clientHandle) {
	for ev := range h.client.Events() {
		s.handleEvent(h, ev)
	}
	log.Debug().Str("userId", h.userID).Str("handleId", h.id).Msg("client event stream closed")
}

func (s *SessionService) handleEvent(h *clientHandle, ev chat.Event) {
	switch ev.Kind {
	case chat.EventPairingCode:
		s.onPairingCode(h, ev.Code)
	case chat.EventAuthenticated:
		s.onAuthenticated(h)
	case chat.EventReady:
		s.onReady(h)
	case chat.EventAuthFailure:
		s.onAuthFailure(h, ev.Reason)
	case chat.EventDisconnected:
		s.onDisconnected(h, ev.Reason)
	case chat.EventMessage:
		if ev.Message != nil {
			s.onLiveMessage(h, *ev.Message)
		}
	default:
		log.Warn().Str("userId", h.userID).Str("kind", string(ev.Kind)).Msg("unhandled chat event")
	}
}

func (s *SessionService) onPairingCode(h *clientHandle, code string) {
	if !s.current(h) {
		return
	}
	h.setState(model.StateAwaitingPairing)
	s.reg.setPairingCode(h.userID, code)
	log.Info().Str("userId", h.userID).Str("code", util.MaskCode(code)).Msg("pairing code received")

	ctx, cancel := s.persistCtx()
	defer cancel()
	if _, err := s.sessions.Upsert(ctx, model.UpsertSessionParams{UserID: h.userID}); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("ensure session record")
	}

	s.publish(h.userID, sse.EventPairingCode, map[string]any{"pairingCode": code})
}

func (s *SessionService) onAuthenticated(h *clientHandle) {
	if !s.current(h) {
		return
	}
	h.setState(model.StateAuthenticated)
	log.Info().Str("userId", h.userID).Msg("chat session authenticated")

	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.saveBlob(ctx, h); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("store credentials on authentication")
	}

	s.publish(h.userID, sse.EventAuthenticated, map[string]any{"authenticated": true})
}

// onReady flips the handle to ready and signals waiters immediately. All
// durable writes happen afterwards, detached: a slow or failing database
// never delays or demotes an established connection.
func (s *SessionService) onReady(h *clientHandle) {
	if !s.current(h) {
		return
	}
	h.setState(model.StateReady)
	s.reg.clearPairingCode(h.userID)

	var phone string
	if id := h.client.Identity(); id != nil {
		phone = id.PhoneNumber
	}

	s.publish(h.userID, sse.EventReady, map[string]any{"connected": true, "phoneNumber": phone})
	s.resolveCurrentFlight(h.userID, InitializeResult{Success: true, Connected: true, Message: "connected"})
	log.Info().Str("userId", h.userID).Str("handleId", h.id).Str("phone", phone).Msg("chat session ready")

	go s.persistReadyState(h)
}

// persistReadyState stores credentials, phone number and the active flag
// under one bounded context. The three writes are independent: one failing
// does not stop the others.
func (s *SessionService) persistReadyState(h *clientHandle) {
	start := time.Now()
	ctx, cancel := s.persistCtx()
	defer cancel()

	failed := false

	if err := s.saveBlob(ctx, h); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("persist ready state: credentials")
		failed = true
	}

	var phone *string
	if id := h.client.Identity(); id != nil && id.PhoneNumber != "" {
		phone = &id.PhoneNumber
	}
	if _, err := s.sessions.Upsert(ctx, model.UpsertSessionParams{UserID: h.userID, PhoneNumber: phone}); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("persist ready state: session record")
		failed = true
	}

	if err := s.sessions.SetActive(ctx, h.userID, true); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("persist ready state: mark active")
		failed = true
	}

	metrics.TimeSince(metrics.PersistDuration, start)
	if failed {
		metrics.PersistsFailed.Inc()
		s.publish(h.userID, sse.EventPersistFailed, map[string]any{"persisted": false})
		return
	}
	metrics.PersistsSucceeded.Inc()
	s.publish(h.userID, sse.EventPersisted, map[string]any{"persisted": true})
}

func (s *SessionService) onAuthFailure(h *clientHandle, reason string) {
	if !s.current(h) {
		return
	}
	h.setState(model.StateFailed)
	log.Warn().Str("userId", h.userID).Str("reason", reason).Msg("chat session authentication failed")

	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.sessions.SetActive(ctx, h.userID, false); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("auth failure: mark inactive")
	}

	s.publish(h.userID, sse.EventAuthFailed, map[string]any{"reason": reason})
	s.resolveCurrentFlight(h.userID, InitializeResult{Error: "authentication failed: " + reason})

	// The handle stays registered in its failed state for status reads; the
	// next Initialize replaces it.
	h.client.Disconnect()
}

func (s *SessionService) onDisconnected(h *clientHandle, reason string) {
	if reason == "" {
		reason = "connection closed"
	}
	h.setState(model.StateDisconnected)

	if !s.reg.removeHandle(h) {
		// Stale handle already replaced or explicitly torn down; the
		// current attempt's flight is not ours to resolve.
		return
	}
	metrics.ActiveHandles.Set(float64(s.reg.handleCount()))
	s.reg.clearPairingCode(h.userID)
	log.Warn().Str("userId", h.userID).Str("handleId", h.id).Str("reason", reason).Msg("chat session disconnected")

	ctx, cancel := s.persistCtx()
	defer cancel()
	if err := s.sessions.SetActive(ctx, h.userID, false); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Msg("disconnect: mark inactive")
	}

	s.resolveCurrentFlight(h.userID, InitializeResult{Error: "disconnected before ready: " + reason})
	s.publish(h.userID, sse.EventDisconnected, map[string]any{"reason": reason})
}

// onLiveMessage archives an incoming message as it happens and notifies
// subscribers. Conversation rows are created on demand so brand-new chats
// archive correctly.
func (s *SessionService) onLiveMessage(h *clientHandle, raw chat.Message) {
	if !s.current(h) {
		return
	}

	params := normalizeMessage(h.userID, raw)

	ctx, cancel := s.persistCtx()
	defer cancel()

	conv, err := s.convs.FindByUserAndChatID(ctx, h.userID, params.ChatID)
	if err != nil {
		log.Error().Err(err).Str("userId", h.userID).Str("chatId", params.ChatID).Msg("live message: look up conversation")
	}
	if err == nil && conv == nil {
		name := params.SenderName
		if params.FromMe || name == unknownSender {
			name = params.ChatID
		}
		if _, err := s.convs.Upsert(ctx, model.UpsertConversationParams{
			UserID: h.userID,
			ChatID: params.ChatID,
			Name:   name,
			Kind:   model.ConversationIndividual,
		}); err != nil {
			log.Error().Err(err).Str("userId", h.userID).Str("chatId", params.ChatID).Msg("live message: create conversation")
		}
	}

	if _, err := s.msgs.Upsert(ctx, params); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Str("chatId", params.ChatID).Str("messageId", params.MessageID).Msg("live message: archive")
	}

	if err := s.convs.TouchLastMessageAt(ctx, h.userID, params.ChatID, params.SentAt); err != nil {
		log.Error().Err(err).Str("userId", h.userID).Str("chatId", params.ChatID).Msg("live message: bump last message time")
	}

	if params.FromMe {
		return
	}

	avatarURL := ""
	if url, err := h.client.AvatarURL(ctx, params.SenderID); err == nil {
		avatarURL = url
	}
	s.publish(h.userID, sse.EventMessage, map[string]any{
		"chatId":     params.ChatID,
		"messageId":  params.MessageID,
		"senderId":   params.SenderID,
		"senderName": params.SenderName,
		"avatarUrl":  avatarURL,
		"preview":    previewText(params.Body),
		"sentAt":     params.SentAt,
	})
}
