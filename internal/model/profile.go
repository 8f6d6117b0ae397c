// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"strings"
	"time"
)

// AgencyProfile 保存用户的机构画像，每个用户一行，由上下文装配只读消费。
type AgencyProfile struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint      `gorm:"uniqueIndex;not null" json:"userId"`
	Niche            string    `gorm:"type:varchar(255)" json:"niche"`
	Location         string    `gorm:"type:varchar(255)" json:"location"`
	Services         string    `gorm:"type:text" json:"services"` // 逗号分隔
	MonthlyRevenue   string    `gorm:"type:varchar(100)" json:"monthlyRevenue"`
	RevenueGoal      string    `gorm:"type:varchar(100)" json:"revenueGoal"`
	Background       string    `gorm:"type:text" json:"background"`
	BiggestChallenge string    `gorm:"type:text" json:"biggestChallenge"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (AgencyProfile) TableName() string {
	return "agency_profiles"
}

// ServiceList 将逗号分隔的 Services 字段拆成切片，忽略空项。
func (p AgencyProfile) ServiceList() []string {
	var services []string
	for _, s := range strings.Split(p.Services, ",") {
		if s = strings.TrimSpace(s); s != "" {
			services = append(services, s)
		}
	}
	return services
}

// Client 代表用户跟踪的一个外部业务联系人（业务域中的"客户"）。
// 会话可以挂接到某个 Client，挂接后其画像进入上下文第三层。
type Client struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"userId"`
	BusinessName string    `gorm:"type:varchar(255);not null" json:"businessName"`
	Industry     string    `gorm:"type:varchar(255)" json:"industry"`
	Website      string    `gorm:"type:varchar(255)" json:"website"`
	Status       string    `gorm:"type:varchar(32);not null;default:'lead'" json:"status"`
	Notes        string    `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Client) TableName() string {
	return "clients"
}
