// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// UsageLog 是每次完整交互的只追加用量记录，写入后不再修改。
type UsageLog struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint      `gorm:"index;not null" json:"userId"`
	GptSlug       string    `gorm:"type:varchar(64);index;not null" json:"gptSlug"`
	Provider      string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model         string    `gorm:"type:varchar(64);not null" json:"model"`
	TokensInput   int       `gorm:"not null" json:"tokensInput"`
	TokensOutput  int       `gorm:"not null" json:"tokensOutput"`
	EstimatedCost float64   `gorm:"type:decimal(12,8);not null" json:"estimatedCost"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (UsageLog) TableName() string {
	return "usage_logs"
}
