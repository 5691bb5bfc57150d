package service

import (
	"context"
	"fmt"

	"github.com/chatvault/server-go/internal/model"
	"github.com/chatvault/server-go/internal/repository"
)

type ConversationPage struct {
	Conversations []model.Conversation `json:"conversations"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

type MessagePage struct {
	Messages []model.Message `json:"messages"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

// HistoryService reads the archive. It never touches the live client, so it
// works whether or not the user is connected.
type HistoryService struct {
	convs repository.ConversationRepository
	msgs  repository.MessageRepository
}

func NewHistoryService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
) *HistoryService {
	return &HistoryService{convs: conversationRepo, msgs: messageRepo}
}

func (s *HistoryService) ListConversations(ctx context.Context, userID string, limit, offset int) (*ConversationPage, error) {
	conversations, err := s.convs.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	total, err := s.convs.CountByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}

	return &ConversationPage{
		Conversations: conversations,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	}, nil
}

func (s *HistoryService) ListMessages(ctx context.Context, userID, chatID string, limit, offset int) (*MessagePage, error) {
	messages, err := s.msgs.ListByChat(ctx, userID, chatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	total, err := s.msgs.CountByChat(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	return &MessagePage{
		Messages: messages,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}
