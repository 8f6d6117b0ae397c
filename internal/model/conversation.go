// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Conversation 代表一条持久化的聊天线程。
// Summary 字段保存滑动窗口之外历史的滚动摘要，是被窗口淘汰内容的
// 唯一持久化表示。
type Conversation struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	GptSlug   string    `gorm:"type:varchar(64);index;not null" json:"gptSlug"`
	ClientID  *string   `gorm:"type:varchar(36);index" json:"clientId"`
	Title     string    `gorm:"type:varchar(255)" json:"title"`
	Summary   string    `gorm:"type:text" json:"summary"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Conversation) TableName() string {
	return "conversations"
}

// Message 代表会话中的单轮消息。创建后不可变；
// 按 (created_at, id) 排序，重建算法依赖该顺序。
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string    `gorm:"type:varchar(36);index;not null" json:"conversationId"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"` // "user" 或 "assistant"
	Content        string    `gorm:"type:text;not null" json:"content"`
	TokensUsed     int       `json:"tokensUsed"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}

// ChatTurn 是发送给上游模型的一轮角色消息（不落库）。
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// 消息角色常量。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
