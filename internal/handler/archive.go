package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/audit"
	"github.com/chatvault/server-go/internal/httputil"
	"github.com/chatvault/server-go/internal/middleware"
	"github.com/chatvault/server-go/internal/service"
)

type ArchiveHandler struct {
	archiveService *service.ArchiveService
}

func NewArchiveHandler(archiveService *service.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{
		archiveService: archiveService,
	}
}

func (h *ArchiveHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/run", h.Run)
	r.Delete("/", h.Purge)

	return r
}

type runArchiveRequest struct {
	// Limit caps messages fetched per chat. Absent or null means no cap.
	Limit *int `json:"limit"`
}

// POST /v1/archive/run
func (h *ArchiveHandler) Run(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	var req runArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	limit := 0
	if req.Limit != nil {
		if *req.Limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must not be negative"})
			return
		}
		limit = *req.Limit
	}

	result, err := h.archiveService.FetchAndSaveMessages(r.Context(), user.ID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("archive run failed")
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventArchiveRun,
		UserID: user.ID,
		Details: map[string]interface{}{
			"totalChats":    result.TotalChats,
			"totalMessages": result.TotalMessages,
		},
	})

	writeJSON(w, http.StatusOK, result)
}

// DELETE /v1/archive
func (h *ArchiveHandler) Purge(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.archiveService.PurgeArchive(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("archive purge failed")
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventArchivePurge,
		UserID: user.ID,
		Details: map[string]interface{}{
			"conversationsDeleted": result.Conversations,
			"messagesDeleted":      result.Messages,
		},
	})

	writeJSON(w, http.StatusOK, result)
}
