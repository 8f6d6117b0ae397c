package service

import (
	"context"
	"time"

	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/pkg/log"
)

// ConversationListItem 是会话列表 API 的响应项。
type ConversationListItem struct {
	ID           string    `json:"id"`
	GptSlug      string    `json:"gptSlug"`
	ClientID     *string   `json:"clientId"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConversationDetail 是会话详情 API 的响应结构，消息按时间升序。
type ConversationDetail struct {
	Conversation *model.Conversation `json:"conversation"`
	Messages     []model.Message     `json:"messages"`
}

// ConversationService 提供用户侧的会话查询与删除。
type ConversationService interface {
	List(ctx context.Context, userID uint, gptSlug, clientID string, limit int) ([]ConversationListItem, error)
	Get(ctx context.Context, userID uint, conversationID string) (*ConversationDetail, error)
	Delete(ctx context.Context, userID uint, conversationID string) error
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) ConversationService {
	return &conversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

const (
	defaultConversationLimit = 20
	maxConversationLimit     = 50
)

func (s *conversationService) List(ctx context.Context, userID uint, gptSlug, clientID string, limit int) ([]ConversationListItem, error) {
	if limit <= 0 {
		limit = defaultConversationLimit
	}
	if limit > maxConversationLimit {
		limit = maxConversationLimit
	}

	convs, err := s.conversationRepo.ListByUser(ctx, userID, gptSlug, clientID, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	counts, err := s.messageRepo.CountByConversations(ctx, ids)
	if err != nil {
		// 消息计数只是列表装饰，失败时降级为零
		log.Errorf("count messages for conversation list failed: %v", err)
		counts = map[string]int64{}
	}

	items := make([]ConversationListItem, 0, len(convs))
	for _, c := range convs {
		items = append(items, ConversationListItem{
			ID:           c.ID,
			GptSlug:      c.GptSlug,
			ClientID:     c.ClientID,
			Title:        c.Title,
			MessageCount: counts[c.ID],
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return items, nil
}

func (s *conversationService) Get(ctx context.Context, userID uint, conversationID string) (*ConversationDetail, error) {
	conv, err := s.conversationRepo.FindByIDForUser(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{Conversation: conv, Messages: msgs}, nil
}

func (s *conversationService) Delete(ctx context.Context, userID uint, conversationID string) error {
	return s.conversationRepo.Delete(ctx, conversationID, userID)
}
