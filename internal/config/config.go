// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Extract       ExtractConfig       `mapstructure:"extract"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Chat          ChatConfig          `mapstructure:"chat"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
// Brokers 为空时，后台任务退化为进程内 goroutine 执行。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ExtractConfig 存储附件文本提取服务的配置。
type ExtractConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// ProvidersConfig 汇总所有上游 LLM 提供商的连接配置。
type ProvidersConfig struct {
	Anthropic  ProviderConfig `mapstructure:"anthropic"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Perplexity ProviderConfig `mapstructure:"perplexity"`
}

// ProviderConfig 存储单个 LLM 提供商的配置。
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// ChatConfig 汇总聊天管线的调优参数。未配置的字段使用产品默认值。
type ChatConfig struct {
	HistoryWindow        int     `mapstructure:"history_window"`         // 滑动窗口内逐字保留的最近消息条数
	SummarizeEvery       int     `mapstructure:"summarize_every"`        // 触发增量摘要的消息条数间隔
	SummarizeRecent      int     `mapstructure:"summarize_recent"`       // 每次增量摘要读取的最近消息条数
	SummarizeFullCap     int     `mapstructure:"summarize_full_cap"`     // 一次性全量摘要扫描的消息条数上限
	SiblingConversations int     `mapstructure:"sibling_conversations"`  // 跨助手上下文读取的兄弟会话条数
	SiblingMessages      int     `mapstructure:"sibling_messages"`       // 未摘要兄弟会话回退读取的消息条数
	SiblingTruncateChars int     `mapstructure:"sibling_truncate_chars"` // 兄弟会话消息的单条截断长度
	KnowledgeTopK        int     `mapstructure:"knowledge_top_k"`        // 知识检索返回的分块条数
	KnowledgeMinScore    float64 `mapstructure:"knowledge_min_score"`    // 知识检索的最低相关度阈值 (0-1)
	RateLimit            int     `mapstructure:"rate_limit"`             // 单用户在窗口内允许的消息条数
	RateWindowMinutes    int     `mapstructure:"rate_window_minutes"`    // 限流窗口长度（分钟）
	SummaryProvider      string  `mapstructure:"summary_provider"`       // 摘要与标题使用的提供商
	SummaryModel         string  `mapstructure:"summary_model"`          // 摘要与标题使用的廉价模型
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	ApplyChatDefaults(&Conf.Chat)
}

// ApplyChatDefaults 为未配置的调优参数填入产品默认值。
func ApplyChatDefaults(c *ChatConfig) {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 10
	}
	if c.SummarizeEvery <= 0 {
		c.SummarizeEvery = 4
	}
	if c.SummarizeRecent <= 0 {
		c.SummarizeRecent = 6
	}
	if c.SummarizeFullCap <= 0 {
		c.SummarizeFullCap = 30
	}
	if c.SiblingConversations <= 0 {
		c.SiblingConversations = 5
	}
	if c.SiblingMessages <= 0 {
		c.SiblingMessages = 6
	}
	if c.SiblingTruncateChars <= 0 {
		c.SiblingTruncateChars = 300
	}
	if c.KnowledgeTopK <= 0 {
		c.KnowledgeTopK = 3
	}
	if c.KnowledgeMinScore <= 0 {
		c.KnowledgeMinScore = 0.3
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 50
	}
	if c.RateWindowMinutes <= 0 {
		c.RateWindowMinutes = 60
	}
	if c.SummaryProvider == "" {
		c.SummaryProvider = "anthropic"
	}
	if c.SummaryModel == "" {
		c.SummaryModel = "claude-haiku-4-5-20251001"
	}
}
