package repository

import (
	"context"

	"hexona-gpts-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KnowledgeRepository 维护知识库文档的元数据，分块内容存放在 Elasticsearch。
type KnowledgeRepository interface {
	Create(ctx context.Context, doc *model.KnowledgeDocument) error
	FindByID(ctx context.Context, id string) (*model.KnowledgeDocument, error)
	ListBySlug(ctx context.Context, gptSlug string) ([]model.KnowledgeDocument, error)
	CountBySlug(ctx context.Context, gptSlug string) (int64, error)
	UpdateChunkCount(ctx context.Context, id string, chunkCount int) error
	Delete(ctx context.Context, id string) error
}

type knowledgeRepository struct {
	db *gorm.DB
}

// NewKnowledgeRepository 创建一个新的 KnowledgeRepository 实例。
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepository{db: db}
}

func (r *knowledgeRepository) Create(ctx context.Context, doc *model.KnowledgeDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *knowledgeRepository) FindByID(ctx context.Context, id string) (*model.KnowledgeDocument, error) {
	var doc model.KnowledgeDocument
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *knowledgeRepository) ListBySlug(ctx context.Context, gptSlug string) ([]model.KnowledgeDocument, error) {
	var docs []model.KnowledgeDocument
	err := r.db.WithContext(ctx).
		Where("gpt_slug = ?", gptSlug).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *knowledgeRepository) CountBySlug(ctx context.Context, gptSlug string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.KnowledgeDocument{}).
		Where("gpt_slug = ?", gptSlug).
		Count(&count).Error
	return count, err
}

func (r *knowledgeRepository) UpdateChunkCount(ctx context.Context, id string, chunkCount int) error {
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeDocument{}).
		Where("id = ?", id).
		Update("chunk_count", chunkCount).Error
}

func (r *knowledgeRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.KnowledgeDocument{}).Error
}
