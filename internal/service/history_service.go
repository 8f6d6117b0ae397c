package service

import (
	"context"
	"fmt"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
)

// summaryAck 是注入摘要回合后紧跟的助手确认回合，保持 user/assistant 交替。
const summaryAck = "Understood, I have the context from our earlier conversation. Let's continue."

// HistoryService 负责把一段会话折叠成送入模型的消息窗口。
type HistoryService interface {
	// Load 返回按时间升序排列的最近消息窗口。当会话长度超出窗口且已有
	// 摘要时，在窗口前额外注入一对合成回合携带早期上下文。
	Load(ctx context.Context, conversationID string) ([]model.ChatTurn, error)
}

type historyService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewHistoryService 创建一个新的 HistoryService 实例。
func NewHistoryService(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) HistoryService {
	return &historyService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

func (s *historyService) Load(ctx context.Context, conversationID string) ([]model.ChatTurn, error) {
	window := config.Conf.Chat.HistoryWindow

	recent, err := s.messageRepo.FindRecent(ctx, conversationID, window)
	if err != nil {
		return nil, fmt.Errorf("load recent messages: %w", err)
	}
	total, err := s.messageRepo.CountByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	turns := make([]model.ChatTurn, 0, len(recent)+2)
	if total > int64(window) {
		conv, err := s.conversationRepo.FindByID(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		if conv.Summary != "" {
			turns = append(turns,
				model.ChatTurn{Role: model.RoleUser, Content: fmt.Sprintf("[Earlier conversation summary: %s]", conv.Summary)},
				model.ChatTurn{Role: model.RoleAssistant, Content: summaryAck},
			)
		}
	}

	// FindRecent 返回倒序，这里翻回时间升序
	for i := len(recent) - 1; i >= 0; i-- {
		turns = append(turns, model.ChatTurn{Role: recent[i].Role, Content: recent[i].Content})
	}
	return turns, nil
}
