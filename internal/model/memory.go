// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// GptMemory 保存某个用户在某个助手上的长期蒸馏记忆，独立于单个会话。
// 唯一键为 (user_id, gpt_slug)，由摘要任务 upsert，上下文装配读取。
type GptMemory struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint      `gorm:"uniqueIndex:uk_user_gpt;not null" json:"userId"`
	GptSlug    string    `gorm:"type:varchar(64);uniqueIndex:uk_user_gpt;not null" json:"gptSlug"`
	MemoryBlob string    `gorm:"type:text" json:"memoryBlob"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (GptMemory) TableName() string {
	return "gpt_memories"
}
