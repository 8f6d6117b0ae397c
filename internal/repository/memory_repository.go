// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"

	"hexona-gpts-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemoryRepository 定义了 (user, gpt) 长期记忆行的持久化操作。
type MemoryRepository interface {
	Get(ctx context.Context, userID uint, gptSlug string) (*model.GptMemory, error)
	Upsert(ctx context.Context, userID uint, gptSlug, memoryBlob string) error
}

type memoryRepository struct {
	db *gorm.DB
}

// NewMemoryRepository 创建一个新的 MemoryRepository 实例。
func NewMemoryRepository(db *gorm.DB) MemoryRepository {
	return &memoryRepository{db: db}
}

// Get 读取某个用户在某个助手上的记忆行；不存在时返回 gorm.ErrRecordNotFound。
func (r *memoryRepository) Get(ctx context.Context, userID uint, gptSlug string) (*model.GptMemory, error) {
	var mem model.GptMemory
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND gpt_slug = ?", userID, gptSlug).
		First(&mem).Error
	if err != nil {
		return nil, err
	}
	return &mem, nil
}

// Upsert 按 (user_id, gpt_slug) 唯一键写入或覆盖记忆内容。
func (r *memoryRepository) Upsert(ctx context.Context, userID uint, gptSlug, memoryBlob string) error {
	mem := model.GptMemory{
		UserID:     userID,
		GptSlug:    gptSlug,
		MemoryBlob: memoryBlob,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "gpt_slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"memory_blob"}),
	}).Create(&mem).Error
}
