package service

import (
	"context"
	"errors"
	"time"

	"hexona-gpts-go/internal/gpts"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"

	"gorm.io/gorm"
)

// UserListResponse 定义了用户列表 API 的响应结构。
type UserListResponse struct {
	Content       []model.User `json:"content"`
	TotalElements int64        `json:"totalElements"`
	TotalPages    int          `json:"totalPages"`
	Size          int          `json:"size"`
	Number        int          `json:"number"`
}

// GptOverview 合并目录默认值与数据库覆盖后的助手视图。
type GptOverview struct {
	GptSlug       string   `json:"gptSlug"`
	Name          string   `json:"name"`
	Provider      string   `json:"provider"`
	Model         string   `json:"model"`
	ModelOverride string   `json:"modelOverride,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	IsActive      bool     `json:"isActive"`
	HasCustomPrompt bool   `json:"hasCustomPrompt"`
}

// GptConfigInput 是助手配置更新接口的入参。
type GptConfigInput struct {
	SystemPrompt  string   `json:"systemPrompt"`
	ModelOverride string   `json:"modelOverride"`
	Temperature   *float64 `json:"temperature"`
	IsActive      *bool    `json:"isActive"`
}

// AnalyticsSummary 是后台看板的概览数字。
type AnalyticsSummary struct {
	TotalUsers    int64   `json:"totalUsers"`
	ActiveUsers   int64   `json:"activeUsers"`
	TotalMessages int64   `json:"totalMessages"`
	TotalCost     float64 `json:"totalCost"`
}

// AnalyticsReport 是后台看板的完整报表。
type AnalyticsReport struct {
	DailyData      []repository.DailyUsage   `json:"dailyData"`
	GptPopularity  []repository.GptUsage     `json:"gptPopularity"`
	ModelBreakdown []repository.UsageSummary `json:"modelBreakdown"`
	TopUsers       []TopUserEntry            `json:"topUsers"`
}

// TopUserEntry 在用量聚合上回填了用户名称。
type TopUserEntry struct {
	UserID       uint    `json:"userId"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	MessageCount int64   `json:"messageCount"`
	Cost         float64 `json:"cost"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	// User Management
	ListUsers(page, size int) (*UserListResponse, error)
	SetUserActive(userID uint, isActive bool) error
	SetUserRole(userID uint, role string) error

	// GPT Management
	ListGpts(ctx context.Context) ([]GptOverview, error)
	GetGptConfig(ctx context.Context, gptSlug string) (*model.GptConfig, string, error)
	UpdateGptConfig(ctx context.Context, gptSlug string, input GptConfigInput) (*model.GptConfig, error)

	// Analytics
	AnalyticsSummary(ctx context.Context, since time.Time) (*AnalyticsSummary, error)
	AnalyticsReport(ctx context.Context, since time.Time) (*AnalyticsReport, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	userRepo      repository.UserRepository
	gptConfigRepo repository.GptConfigRepository
	usageRepo     repository.UsageRepository
}

// NewAdminService 创建一个新的 AdminService 实例。
func NewAdminService(userRepo repository.UserRepository, gptConfigRepo repository.GptConfigRepository, usageRepo repository.UsageRepository) AdminService {
	return &adminService{
		userRepo:      userRepo,
		gptConfigRepo: gptConfigRepo,
		usageRepo:     usageRepo,
	}
}

// ListUsers 分页返回用户列表。
func (s *adminService) ListUsers(page, size int) (*UserListResponse, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	users, total, err := s.userRepo.FindWithPagination(page*size, size)
	if err != nil {
		return nil, err
	}
	totalPages := int((total + int64(size) - 1) / int64(size))
	return &UserListResponse{
		Content:       users,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

func (s *adminService) SetUserActive(userID uint, isActive bool) error {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	user.IsActive = isActive
	return s.userRepo.Update(user)
}

func (s *adminService) SetUserRole(userID uint, role string) error {
	if role != "USER" && role != "ADMIN" {
		return errors.New("invalid role")
	}
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	user.Role = role
	return s.userRepo.Update(user)
}

// ListGpts 以助手目录为基底，叠加数据库中的覆盖配置。
func (s *adminService) ListGpts(ctx context.Context) ([]GptOverview, error) {
	configs, err := s.gptConfigRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]model.GptConfig, len(configs))
	for _, c := range configs {
		bySlug[c.GptSlug] = c
	}

	var out []GptOverview
	for _, g := range gpts.Catalog {
		item := GptOverview{
			GptSlug:  g.Slug,
			Name:     g.Name,
			Provider: g.Provider,
			Model:    g.Model,
			IsActive: true,
		}
		if cfg, ok := bySlug[g.Slug]; ok {
			item.ModelOverride = cfg.ModelOverride
			item.Temperature = cfg.Temperature
			item.IsActive = cfg.IsActive
			item.HasCustomPrompt = cfg.SystemPrompt != ""
			if cfg.ModelOverride != "" {
				item.Model = cfg.ModelOverride
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// GetGptConfig 返回覆盖配置与生效的默认提示词。覆盖行不存在时配置为 nil。
func (s *adminService) GetGptConfig(ctx context.Context, gptSlug string) (*model.GptConfig, string, error) {
	if !gpts.Exists(gptSlug) {
		return nil, "", ErrUnknownGpt
	}
	defaultPrompt := gpts.DefaultSystemPrompt(gptSlug)
	cfg, err := s.gptConfigRepo.GetBySlug(ctx, gptSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, defaultPrompt, nil
	}
	if err != nil {
		return nil, "", err
	}
	return cfg, defaultPrompt, nil
}

func (s *adminService) UpdateGptConfig(ctx context.Context, gptSlug string, input GptConfigInput) (*model.GptConfig, error) {
	if !gpts.Exists(gptSlug) {
		return nil, ErrUnknownGpt
	}

	cfg := &model.GptConfig{
		GptSlug:       gptSlug,
		SystemPrompt:  input.SystemPrompt,
		ModelOverride: input.ModelOverride,
		Temperature:   input.Temperature,
		IsActive:      true,
	}
	if input.IsActive != nil {
		cfg.IsActive = *input.IsActive
	}
	if err := s.gptConfigRepo.Upsert(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *adminService) AnalyticsSummary(ctx context.Context, since time.Time) (*AnalyticsSummary, error) {
	totalUsers, err := s.userRepo.Count()
	if err != nil {
		return nil, err
	}
	activeUsers, err := s.userRepo.CountActiveSince(since)
	if err != nil {
		return nil, err
	}
	requests, cost, err := s.usageRepo.Totals(ctx, since)
	if err != nil {
		return nil, err
	}
	return &AnalyticsSummary{
		TotalUsers:    totalUsers,
		ActiveUsers:   activeUsers,
		TotalMessages: requests,
		TotalCost:     cost,
	}, nil
}

func (s *adminService) AnalyticsReport(ctx context.Context, since time.Time) (*AnalyticsReport, error) {
	daily, err := s.usageRepo.SummarizeByDay(ctx, since)
	if err != nil {
		return nil, err
	}
	popularity, err := s.usageRepo.GptPopularity(ctx, since)
	if err != nil {
		return nil, err
	}
	breakdown, err := s.usageRepo.SummarizeByModel(ctx, since)
	if err != nil {
		return nil, err
	}
	topUsage, err := s.usageRepo.TopUsers(ctx, since, 10)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(topUsage))
	for _, u := range topUsage {
		ids = append(ids, u.UserID)
	}
	users, err := s.userRepo.FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	userMap := make(map[uint]model.User, len(users))
	for _, u := range users {
		userMap[u.ID] = u
	}

	topUsers := make([]TopUserEntry, 0, len(topUsage))
	for _, u := range topUsage {
		entry := TopUserEntry{
			UserID:       u.UserID,
			Username:     "Unknown",
			MessageCount: u.Requests,
			Cost:         u.TotalCost,
		}
		if info, ok := userMap[u.UserID]; ok {
			entry.Username = info.Username
			entry.Email = info.Email
		}
		topUsers = append(topUsers, entry)
	}

	return &AnalyticsReport{
		DailyData:      daily,
		GptPopularity:  popularity,
		ModelBreakdown: breakdown,
		TopUsers:       topUsers,
	}, nil
}
