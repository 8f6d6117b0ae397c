package repository

import (
	"context"

	"hexona-gpts-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GptConfigRepository 管理每个助手的后台配置（系统提示词覆盖、模型覆盖等）。
type GptConfigRepository interface {
	GetBySlug(ctx context.Context, gptSlug string) (*model.GptConfig, error)
	List(ctx context.Context) ([]model.GptConfig, error)
	Upsert(ctx context.Context, cfg *model.GptConfig) error
}

type gptConfigRepository struct {
	db *gorm.DB
}

// NewGptConfigRepository 创建一个新的 GptConfigRepository 实例。
func NewGptConfigRepository(db *gorm.DB) GptConfigRepository {
	return &gptConfigRepository{db: db}
}

func (r *gptConfigRepository) GetBySlug(ctx context.Context, gptSlug string) (*model.GptConfig, error) {
	var cfg model.GptConfig
	err := r.db.WithContext(ctx).Where("gpt_slug = ?", gptSlug).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *gptConfigRepository) List(ctx context.Context) ([]model.GptConfig, error) {
	var configs []model.GptConfig
	err := r.db.WithContext(ctx).Order("gpt_slug ASC").Find(&configs).Error
	return configs, err
}

func (r *gptConfigRepository) Upsert(ctx context.Context, cfg *model.GptConfig) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gpt_slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"system_prompt", "model_override", "temperature", "is_active"}),
	}).Create(cfg).Error
}
