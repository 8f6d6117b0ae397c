// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"time"

	"hexona-gpts-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository 定义了会话记录的持久化操作。
type ConversationRepository interface {
	Create(ctx context.Context, userID uint, gptSlug string, clientID *string) (*model.Conversation, error)
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByIDForUser(ctx context.Context, id string, userID uint) (*model.Conversation, error)
	ListByUser(ctx context.Context, userID uint, gptSlug, clientID string, limit int) ([]model.Conversation, error)
	// FindSiblings 返回同一联系人下其他助手的最近会话，用于跨助手上下文。
	FindSiblings(ctx context.Context, userID uint, clientID, excludeSlug string, limit int) ([]model.Conversation, error)
	UpdateTitle(ctx context.Context, id, title string) error
	UpdateSummary(ctx context.Context, id, summary string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string, userID uint) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 懒创建一条会话记录，ID 为新生成的 UUID。
func (r *conversationRepository) Create(ctx context.Context, userID uint, gptSlug string, clientID *string) (*model.Conversation, error) {
	conv := &model.Conversation{
		ID:       uuid.NewString(),
		UserID:   userID,
		GptSlug:  gptSlug,
		ClientID: clientID,
	}
	if err := r.db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// FindByID 按 ID 查找会话。
func (r *conversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByIDForUser 按 ID 查找会话并校验归属用户，实施租户隔离。
func (r *conversationRepository) FindByIDForUser(ctx context.Context, id string, userID uint) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser 按更新时间倒序返回用户的会话列表，可按助手或联系人过滤。
func (r *conversationRepository) ListByUser(ctx context.Context, userID uint, gptSlug, clientID string, limit int) ([]model.Conversation, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if gptSlug != "" {
		q = q.Where("gpt_slug = ?", gptSlug)
	}
	if clientID != "" {
		q = q.Where("client_id = ?", clientID)
	}
	var convs []model.Conversation
	err := q.Order("updated_at DESC").Limit(limit).Find(&convs).Error
	return convs, err
}

// FindSiblings 返回同一联系人下、不同助手的最近会话。
func (r *conversationRepository) FindSiblings(ctx context.Context, userID uint, clientID, excludeSlug string, limit int) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND client_id = ? AND gpt_slug <> ?", userID, clientID, excludeSlug).
		Order("updated_at DESC").
		Limit(limit).
		Find(&convs).Error
	return convs, err
}

// UpdateTitle 更新会话标题。
func (r *conversationRepository) UpdateTitle(ctx context.Context, id, title string) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).Update("title", title).Error
}

// UpdateSummary 更新会话的滚动摘要。后写覆盖先写（last write wins）。
func (r *conversationRepository) UpdateSummary(ctx context.Context, id, summary string) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).Update("summary", summary).Error
}

// Touch 刷新会话的更新时间。
func (r *conversationRepository) Touch(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", id).Update("updated_at", time.Now()).Error
}

// Delete 删除会话及其全部消息。
func (r *conversationRepository) Delete(ctx context.Context, id string, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error
	})
}
