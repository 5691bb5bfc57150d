package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/httputil"
	"github.com/chatvault/server-go/internal/middleware"
	"github.com/chatvault/server-go/internal/service"
)

type HistoryHandler struct {
	historyService *service.HistoryService
}

func NewHistoryHandler(historyService *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

func (h *HistoryHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListConversations)
	r.Get("/{chatID}/messages", h.ListMessages)

	return r
}

// GET /v1/chats
func (h *HistoryHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	page := ParsePagination(r)

	result, err := h.historyService.ListConversations(r.Context(), user.ID, page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list conversations")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/chats/{chatID}/messages
func (h *HistoryHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeUnauthorized(w)
		return
	}

	chatID := chi.URLParam(r, "chatID")
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat id is required"})
		return
	}

	page := ParsePagination(r)

	result, err := h.historyService.ListMessages(r.Context(), user.ID, chatID, page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Str("chatId", chatID).Msg("failed to list messages")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
