package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatvault/server-go/internal/model"
)

func seedArchive(t *testing.T, convs *memConversationRepo, msgs *memMessageRepo) {
	t.Helper()
	ctx := context.Background()
	for _, chatID := range []string{"chat-a", "chat-b", "chat-c"} {
		_, err := convs.Upsert(ctx, model.UpsertConversationParams{
			UserID: testUser, ChatID: chatID, Name: chatID, Kind: model.ConversationIndividual,
		})
		require.NoError(t, err)
	}
	base := time.UnixMilli(1700000000000).UTC()
	for i := 0; i < 5; i++ {
		_, err := msgs.Upsert(ctx, model.UpsertMessageParams{
			UserID:      testUser,
			ChatID:      "chat-a",
			MessageID:   "m" + strconv.Itoa(i),
			SenderID:    "peer",
			SenderName:  "Peer",
			Body:        "hello",
			MessageType: "text",
			SentAt:      base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func TestHistoryService_ListConversations(t *testing.T) {
	convs := newMemConversationRepo()
	msgs := newMemMessageRepo()
	seedArchive(t, convs, msgs)
	svc := NewHistoryService(convs, msgs)

	t.Run("pages through the archive", func(t *testing.T) {
		page, err := svc.ListConversations(context.Background(), testUser, 2, 0)

		require.NoError(t, err)
		assert.Len(t, page.Conversations, 2)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.Limit)
		assert.Equal(t, 0, page.Offset)

		rest, err := svc.ListConversations(context.Background(), testUser, 2, 2)
		require.NoError(t, err)
		assert.Len(t, rest.Conversations, 1)
	})

	t.Run("empty for an unknown user", func(t *testing.T) {
		page, err := svc.ListConversations(context.Background(), "nobody", 10, 0)

		require.NoError(t, err)
		assert.Empty(t, page.Conversations)
		assert.Zero(t, page.Total)
	})
}

func TestHistoryService_ListMessages(t *testing.T) {
	convs := newMemConversationRepo()
	msgs := newMemMessageRepo()
	seedArchive(t, convs, msgs)
	svc := NewHistoryService(convs, msgs)

	t.Run("returns newest messages first", func(t *testing.T) {
		page, err := svc.ListMessages(context.Background(), testUser, "chat-a", 3, 0)

		require.NoError(t, err)
		require.Len(t, page.Messages, 3)
		assert.Equal(t, 5, page.Total)
		assert.True(t, page.Messages[0].SentAt.After(page.Messages[1].SentAt))
		assert.True(t, page.Messages[1].SentAt.After(page.Messages[2].SentAt))
	})

	t.Run("empty for a chat with no archive", func(t *testing.T) {
		page, err := svc.ListMessages(context.Background(), testUser, "chat-z", 10, 0)

		require.NoError(t, err)
		assert.Empty(t, page.Messages)
		assert.Zero(t, page.Total)
	})
}
