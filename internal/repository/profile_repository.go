package repository

import (
	"context"

	"hexona-gpts-go/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileRepository 提供机构画像与客户档案的数据访问。
type ProfileRepository interface {
	GetAgencyProfile(ctx context.Context, userID uint) (*model.AgencyProfile, error)
	UpsertAgencyProfile(ctx context.Context, profile *model.AgencyProfile) error
	GetClient(ctx context.Context, userID uint, clientID string) (*model.Client, error)
	ListClients(ctx context.Context, userID uint) ([]model.Client, error)
	CreateClient(ctx context.Context, client *model.Client) error
	UpdateClient(ctx context.Context, client *model.Client) error
	DeleteClient(ctx context.Context, userID uint, clientID string) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建一个新的 ProfileRepository 实例。
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetAgencyProfile(ctx context.Context, userID uint) (*model.AgencyProfile, error) {
	var profile model.AgencyProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertAgencyProfile 每个用户只有一条画像行，存在则整行覆盖。
func (r *profileRepository) UpsertAgencyProfile(ctx context.Context, profile *model.AgencyProfile) error {
	var existing model.AgencyProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", profile.UserID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(profile).Error
	}
	if err != nil {
		return err
	}
	profile.ID = existing.ID
	return r.db.WithContext(ctx).Save(profile).Error
}

// GetClient 带租户约束的单条客户查询。
func (r *profileRepository) GetClient(ctx context.Context, userID uint, clientID string) (*model.Client, error) {
	var client model.Client
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", clientID, userID).
		First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *profileRepository) ListClients(ctx context.Context, userID uint) ([]model.Client, error) {
	var clients []model.Client
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&clients).Error
	return clients, err
}

func (r *profileRepository) CreateClient(ctx context.Context, client *model.Client) error {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(client).Error
}

func (r *profileRepository) UpdateClient(ctx context.Context, client *model.Client) error {
	return r.db.WithContext(ctx).
		Model(&model.Client{}).
		Where("id = ? AND user_id = ?", client.ID, client.UserID).
		Updates(map[string]interface{}{
			"business_name": client.BusinessName,
			"industry":      client.Industry,
			"website":       client.Website,
			"status":        client.Status,
			"notes":         client.Notes,
		}).Error
}

func (r *profileRepository) DeleteClient(ctx context.Context, userID uint, clientID string) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", clientID, userID).
		Delete(&model.Client{}).Error
}
