package repository

import (
	"context"
	"time"

	"hexona-gpts-go/internal/model"

	"gorm.io/gorm"
)

// UsageSummary 按 (provider, model) 聚合的用量统计。
type UsageSummary struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Requests     int64   `json:"requests"`
	TokensInput  int64   `json:"tokens_input"`
	TokensOutput int64   `json:"tokens_output"`
	TotalCost    float64 `json:"total_cost"`
}

// GptUsage 是按助手聚合的调用次数。
type GptUsage struct {
	GptSlug  string `json:"gptSlug"`
	Requests int64  `json:"requests"`
}

// UserUsage 是按用户聚合的调用次数与成本。
type UserUsage struct {
	UserID    uint    `json:"userId"`
	Requests  int64   `json:"requests"`
	TotalCost float64 `json:"totalCost"`
}

// DailyUsage 是按天聚合的消息量与成本。
type DailyUsage struct {
	Day       string  `json:"date"`
	Requests  int64   `json:"requests"`
	TotalCost float64 `json:"totalCost"`
}

// UsageRepository 记录并统计每次模型调用的消耗。
type UsageRepository interface {
	Create(ctx context.Context, entry *model.UsageLog) error
	Totals(ctx context.Context, since time.Time) (requests int64, cost float64, err error)
	SummarizeByModel(ctx context.Context, since time.Time) ([]UsageSummary, error)
	SummarizeByUser(ctx context.Context, userID uint, since time.Time) ([]UsageSummary, error)
	SummarizeByDay(ctx context.Context, since time.Time) ([]DailyUsage, error)
	GptPopularity(ctx context.Context, since time.Time) ([]GptUsage, error)
	TopUsers(ctx context.Context, since time.Time, limit int) ([]UserUsage, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建一个新的 UsageRepository 实例。
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Create(ctx context.Context, entry *model.UsageLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *usageRepository) Totals(ctx context.Context, since time.Time) (int64, float64, error) {
	var row struct {
		Requests  int64
		TotalCost float64
	}
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("COUNT(*) AS requests, COALESCE(SUM(estimated_cost), 0) AS total_cost").
		Where("created_at >= ?", since).
		Scan(&row).Error
	return row.Requests, row.TotalCost, err
}

func (r *usageRepository) SummarizeByModel(ctx context.Context, since time.Time) ([]UsageSummary, error) {
	var rows []UsageSummary
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("provider, model, COUNT(*) AS requests, SUM(tokens_input) AS tokens_input, SUM(tokens_output) AS tokens_output, SUM(estimated_cost) AS total_cost").
		Where("created_at >= ?", since).
		Group("provider, model").
		Order("total_cost DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) SummarizeByDay(ctx context.Context, since time.Time) ([]DailyUsage, error) {
	var rows []DailyUsage
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("DATE(created_at) AS day, COUNT(*) AS requests, SUM(estimated_cost) AS total_cost").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) GptPopularity(ctx context.Context, since time.Time) ([]GptUsage, error) {
	var rows []GptUsage
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("gpt_slug, COUNT(*) AS requests").
		Where("created_at >= ?", since).
		Group("gpt_slug").
		Order("requests DESC").
		Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) TopUsers(ctx context.Context, since time.Time, limit int) ([]UserUsage, error) {
	var rows []UserUsage
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("user_id, COUNT(*) AS requests, SUM(estimated_cost) AS total_cost").
		Where("created_at >= ?", since).
		Group("user_id").
		Order("requests DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *usageRepository) SummarizeByUser(ctx context.Context, userID uint, since time.Time) ([]UsageSummary, error) {
	var rows []UsageSummary
	err := r.db.WithContext(ctx).
		Model(&model.UsageLog{}).
		Select("provider, model, COUNT(*) AS requests, SUM(tokens_input) AS tokens_input, SUM(tokens_output) AS tokens_output, SUM(estimated_cost) AS total_cost").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("provider, model").
		Order("total_cost DESC").
		Scan(&rows).Error
	return rows, err
}
