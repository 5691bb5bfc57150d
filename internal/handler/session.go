package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/audit"
	apperrors "github.com/chatvault/server-go/internal/errors"
	"github.com/chatvault/server-go/internal/httputil"
	"github.com/chatvault/server-go/internal/middleware"
	"github.com/chatvault/server-go/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/connect", h.Connect)
	r.Get("/", h.CheckExisting)
	r.Get("/status", h.Status)
	r.Get("/pairing-code", h.PairingCode)
	r.Post("/disconnect", h.Disconnect)
	r.Delete("/", h.Delete)

	return r
}

// POST /v1/session/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	result := h.sessionService.Initialize(r.Context(), user.ID)

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSessionConnect,
		UserID:  user.ID,
		Details: map[string]interface{}{"success": result.Success},
	})

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

// GET /v1/session
func (h *SessionHandler) CheckExisting(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.sessionService.CheckExistingSession(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to check existing session")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/session/status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.sessionService.GetStatus(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to get session status")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/session/pairing-code
func (h *SessionHandler) PairingCode(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	code, ok := h.sessionService.PairingCode(user.ID)
	if !ok {
		httputil.WriteError(w, apperrors.NotFound("Pairing code"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"pairingCode": code})
}

// POST /v1/session/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	result := h.sessionService.Disconnect(r.Context(), user.ID)

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventSessionDisconnect,
		UserID: user.ID,
	})

	writeJSON(w, http.StatusOK, result)
}

// DELETE /v1/session
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	result := h.sessionService.DeleteSession(r.Context(), user.ID)

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventSessionDelete,
		UserID: user.ID,
	})

	writeJSON(w, http.StatusOK, result)
}
