package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatvault/server-go/internal/chat"
	apperrors "github.com/chatvault/server-go/internal/errors"
	"github.com/chatvault/server-go/internal/metrics"
	"github.com/chatvault/server-go/internal/model"
	"github.com/chatvault/server-go/internal/repository"
)

const (
	chatStatusSuccess = "success"
	chatStatusError   = "error"
)

type ChatArchiveResult struct {
	ChatID   string `json:"chatId"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Messages int    `json:"messages"`
	Error    string `json:"error,omitempty"`
}

type ArchiveResult struct {
	Success             bool                `json:"success"`
	TotalChats          int                 `json:"totalChats"`
	TotalChatsProcessed int                 `json:"totalChatsProcessed"`
	TotalMessages       int                 `json:"totalMessages"`
	Chats               []ChatArchiveResult `json:"chats"`
}

type PurgeResult struct {
	Success       bool  `json:"success"`
	Conversations int64 `json:"conversationsDeleted"`
	Messages      int64 `json:"messagesDeleted"`
}

// ArchiveService pulls full message history off a live connection into the
// archive. It borrows the client through the session service and never
// holds it across runs.
type ArchiveService struct {
	sessions *SessionService
	convs    repository.ConversationRepository
	msgs     repository.MessageRepository

	batchSize  int
	pauseEvery int
	pause      time.Duration
}

func NewArchiveService(
	sessions *SessionService,
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	batchSize int,
	pauseEvery int,
	pause time.Duration,
) *ArchiveService {
	return &ArchiveService{
		sessions:   sessions,
		convs:      conversationRepo,
		msgs:       messageRepo,
		batchSize:  batchSize,
		pauseEvery: pauseEvery,
		pause:      pause,
	}
}

// FetchAndSaveMessages archives every conversation visible to the user's
// live client. limit bounds history per conversation; zero means all of it.
// Conversations are archived independently: one failing never aborts the
// run, it is reported in its per-chat entry instead.
func (s *ArchiveService) FetchAndSaveMessages(ctx context.Context, userID string, limit int) (*ArchiveResult, error) {
	client, err := s.sessions.readyClient(userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	metrics.ArchiveRuns.Inc()
	log.Info().Str("userId", userID).Int("limit", limit).Msg("archive run started")

	chats, err := client.Chats(ctx)
	if err != nil {
		return nil, apperrors.ClientError("list chats", err)
	}

	result := &ArchiveResult{
		TotalChats: len(chats),
		Chats:      make([]ChatArchiveResult, 0, len(chats)),
	}

	for i, c := range chats {
		if ctx.Err() != nil {
			log.Warn().Str("userId", userID).Int("processed", result.TotalChatsProcessed).Msg("archive run aborted")
			break
		}

		chatResult := s.archiveChat(ctx, client, userID, c, limit)
		result.Chats = append(result.Chats, chatResult)
		result.TotalChatsProcessed++
		result.TotalMessages += chatResult.Messages
		if chatResult.Status == chatStatusError {
			metrics.ArchiveChatsFailed.Inc()
		}

		// Breathe between bursts so the provider does not flag the account.
		if s.pauseEvery > 0 && (i+1)%s.pauseEvery == 0 && i+1 < len(chats) {
			select {
			case <-time.After(s.pause):
			case <-ctx.Done():
			}
		}
	}

	result.Success = result.TotalChatsProcessed == result.TotalChats
	metrics.TimeSince(metrics.ArchiveDuration, start)

	log.Info().
		Str("userId", userID).
		Int("totalChats", result.TotalChats).
		Int("processed", result.TotalChatsProcessed).
		Int("messages", result.TotalMessages).
		Msg("archive run finished")

	return result, nil
}

// archiveChat records one conversation and its history. Any error is
// confined to this chat's result entry.
func (s *ArchiveService) archiveChat(ctx context.Context, client chat.Client, userID string, c chat.Chat, limit int) ChatArchiveResult {
	res := ChatArchiveResult{ChatID: c.ID, Name: c.Name}

	params := model.UpsertConversationParams{
		UserID: userID,
		ChatID: c.ID,
		Name:   c.Name,
		Kind:   model.ConversationIndividual,
	}
	if c.IsGroup {
		params.Kind = model.ConversationGroup
		params.ParticipantCount = len(c.Participants)
		if raw, err := json.Marshal(c.Participants); err == nil {
			snapshot := json.RawMessage(raw)
			params.Participants = &snapshot
		}
	}
	if _, err := s.convs.Upsert(ctx, params); err != nil {
		log.Error().Err(err).Str("userId", userID).Str("chatId", c.ID).Msg("archive: save conversation")
		res.Status = chatStatusError
		res.Error = "save conversation: " + err.Error()
		return res
	}

	history, err := client.History(ctx, c.ID, limit)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Str("chatId", c.ID).Msg("archive: fetch history")
		res.Status = chatStatusError
		res.Error = "fetch history: " + err.Error()
		return res
	}

	saved, lastAt := s.saveHistory(ctx, userID, c.ID, history)
	res.Messages = saved
	res.Status = chatStatusSuccess

	if !lastAt.IsZero() {
		if err := s.convs.TouchLastMessageAt(ctx, userID, c.ID, lastAt); err != nil {
			log.Error().Err(err).Str("userId", userID).Str("chatId", c.ID).Msg("archive: bump last message time")
		}
	}

	return res
}

// saveHistory persists history in fixed-size batches. A failing batch falls
// back to per-record writes so one bad record costs only itself. Returns
// how many records went through and the newest message time seen.
func (s *ArchiveService) saveHistory(ctx context.Context, userID, chatID string, history []chat.Message) (int, time.Time) {
	var saved int
	var lastAt time.Time

	records := make([]model.UpsertMessageParams, 0, len(history))
	for _, m := range history {
		p := normalizeMessage(userID, m)
		p.ChatID = chatID
		records = append(records, p)
		if p.SentAt.After(lastAt) {
			lastAt = p.SentAt
		}
	}

	for begin := 0; begin < len(records); begin += s.batchSize {
		end := begin + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[begin:end]

		n, err := s.msgs.BulkUpsert(ctx, batch)
		if err == nil {
			saved += int(n)
			continue
		}

		metrics.ArchiveBatchFallbacks.Inc()
		log.Warn().Err(err).Str("userId", userID).Str("chatId", chatID).Int("batchSize", len(batch)).Msg("bulk save failed, retrying per record")
		for _, rec := range batch {
			if _, err := s.msgs.Upsert(ctx, rec); err != nil {
				log.Error().Err(err).Str("userId", userID).Str("chatId", chatID).Str("messageId", rec.MessageID).Msg("save message")
				continue
			}
			saved++
		}
	}

	if saved > 0 {
		metrics.ArchiveMessagesSaved.Add(float64(saved))
	}
	return saved, lastAt
}

// PurgeArchive removes every archived conversation and message for the
// user. The session record is untouched.
func (s *ArchiveService) PurgeArchive(ctx context.Context, userID string) (*PurgeResult, error) {
	messages, err := s.msgs.DeleteByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	conversations, err := s.convs.DeleteByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("userId", userID).
		Int64("conversations", conversations).
		Int64("messages", messages).
		Msg("archive purged")

	return &PurgeResult{Success: true, Conversations: conversations, Messages: messages}, nil
}
