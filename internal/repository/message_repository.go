// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"

	"hexona-gpts-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 定义了消息记录的持久化操作。
// 消息创建后不可变，所有读取都依赖 (created_at, id) 的稳定顺序。
type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	// FindRecent 按时间倒序返回会话最近的 limit 条消息。
	FindRecent(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	// FindOldest 按时间正序返回会话最早的 limit 条消息。
	FindOldest(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
	// CountByConversations 一次性统计多个会话的消息数，供列表视图使用。
	CountByConversations(ctx context.Context, conversationIDs []string) (map[string]int64, error)
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 写入一条消息。
func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindRecent 按时间倒序返回最近的 limit 条消息。
func (r *messageRepository) FindRecent(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// FindOldest 按时间正序返回最早的 limit 条消息。
func (r *messageRepository) FindOldest(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// CountByConversation 返回会话的消息总数。
func (r *messageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// CountByConversations 按会话分组统计消息数。
func (r *messageRepository) CountByConversations(ctx context.Context, conversationIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ConversationID string
		Total          int64
	}
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ?", conversationIDs).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Total
	}
	return counts, nil
}

// ListByConversation 按时间正序返回会话的全部消息。
func (r *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}
