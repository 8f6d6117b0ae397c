package service

import (
	"context"
	"errors"
	"strings"

	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
)

// AgencyProfileInput 是机构画像更新接口的入参。
type AgencyProfileInput struct {
	Niche            string   `json:"niche"`
	Location         string   `json:"location"`
	Services         []string `json:"services"`
	MonthlyRevenue   string   `json:"monthlyRevenue"`
	RevenueGoal      string   `json:"revenueGoal"`
	Background       string   `json:"background"`
	BiggestChallenge string   `json:"biggestChallenge"`
}

// ClientInput 是联系人创建与更新接口的入参。
type ClientInput struct {
	BusinessName string `json:"businessName"`
	Industry     string `json:"industry"`
	Website      string `json:"website"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
}

// ProfileService 管理机构画像与联系人档案，二者都是上下文装配的数据源。
type ProfileService interface {
	GetAgencyProfile(ctx context.Context, userID uint) (*model.AgencyProfile, error)
	SaveAgencyProfile(ctx context.Context, userID uint, input AgencyProfileInput) (*model.AgencyProfile, error)
	ListClients(ctx context.Context, userID uint) ([]model.Client, error)
	CreateClient(ctx context.Context, userID uint, input ClientInput) (*model.Client, error)
	UpdateClient(ctx context.Context, userID uint, clientID string, input ClientInput) (*model.Client, error)
	DeleteClient(ctx context.Context, userID uint, clientID string) error
}

type profileService struct {
	profileRepo repository.ProfileRepository
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(profileRepo repository.ProfileRepository) ProfileService {
	return &profileService{profileRepo: profileRepo}
}

func (s *profileService) GetAgencyProfile(ctx context.Context, userID uint) (*model.AgencyProfile, error) {
	return s.profileRepo.GetAgencyProfile(ctx, userID)
}

func (s *profileService) SaveAgencyProfile(ctx context.Context, userID uint, input AgencyProfileInput) (*model.AgencyProfile, error) {
	profile := &model.AgencyProfile{
		UserID:           userID,
		Niche:            input.Niche,
		Location:         input.Location,
		Services:         strings.Join(input.Services, ","),
		MonthlyRevenue:   input.MonthlyRevenue,
		RevenueGoal:      input.RevenueGoal,
		Background:       input.Background,
		BiggestChallenge: input.BiggestChallenge,
	}
	if err := s.profileRepo.UpsertAgencyProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *profileService) ListClients(ctx context.Context, userID uint) ([]model.Client, error) {
	return s.profileRepo.ListClients(ctx, userID)
}

func (s *profileService) CreateClient(ctx context.Context, userID uint, input ClientInput) (*model.Client, error) {
	if strings.TrimSpace(input.BusinessName) == "" {
		return nil, errors.New("businessName is required")
	}
	status := input.Status
	if status == "" {
		status = "lead"
	}
	client := &model.Client{
		UserID:       userID,
		BusinessName: input.BusinessName,
		Industry:     input.Industry,
		Website:      input.Website,
		Status:       status,
		Notes:        input.Notes,
	}
	if err := s.profileRepo.CreateClient(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *profileService) UpdateClient(ctx context.Context, userID uint, clientID string, input ClientInput) (*model.Client, error) {
	existing, err := s.profileRepo.GetClient(ctx, userID, clientID)
	if err != nil {
		return nil, err
	}

	existing.BusinessName = input.BusinessName
	existing.Industry = input.Industry
	existing.Website = input.Website
	if input.Status != "" {
		existing.Status = input.Status
	}
	existing.Notes = input.Notes

	if err := s.profileRepo.UpdateClient(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *profileService) DeleteClient(ctx context.Context, userID uint, clientID string) error {
	return s.profileRepo.DeleteClient(ctx, userID, clientID)
}
