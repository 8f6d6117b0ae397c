// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// GptConfig 保存管理后台对单个助手的覆盖配置。
// IsActive 为 false 时，聊天管线在派发前拒绝该助手的请求。
type GptConfig struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	GptSlug       string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"gptSlug"`
	SystemPrompt  string    `gorm:"type:text" json:"systemPrompt"`
	ModelOverride string    `gorm:"type:varchar(64)" json:"modelOverride"`
	Temperature   *float64  `json:"temperature"`
	IsActive      bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (GptConfig) TableName() string {
	return "gpt_configs"
}

// KnowledgeDocument 是管理员为某个助手上传的参考文档。
// 文档正文切块后向量化写入 Elasticsearch；行本身只记录元数据，
// 其存在与否决定知识检索层是否启用。
type KnowledgeDocument struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	GptSlug    string    `gorm:"type:varchar(64);index;not null" json:"gptSlug"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"fileName"`
	Content    string    `gorm:"type:longtext" json:"-"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunkCount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}
