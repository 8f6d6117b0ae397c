// Package llm provides streaming clients for the upstream chat-completion
// providers (Anthropic, OpenAI, and the Perplexity family via OpenRouter).
package llm

import "context"

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage 记录一次调用的输入/输出 token 数。
// OpenAI 兼容的流式接口不回传用量，此时为字符数折算的估计值。
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// StreamParams 描述一次流式聊天调用。
type StreamParams struct {
	Model       string
	System      string
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

// TokenWriter 接收上游流式返回的增量文本分块。
// 它允许标准的传输层和测试用的拦截器复用同一条调用路径。
type TokenWriter interface {
	WriteToken(token string) error
}

// Client defines the interface for a single upstream provider endpoint.
type Client interface {
	// StreamChat 以 role-based 消息调用聊天接口，将流式分块写入 writer，
	// 并在流结束后返回用量。
	StreamChat(ctx context.Context, p StreamParams, w TokenWriter) (Usage, error)
	// Complete 执行一次非流式调用，用于标题生成与摘要等廉价任务。
	Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

const defaultMaxTokens = 4096

// estimateInputTokens 以 ~4 字符/token 的启发式估算输入 token 数。
func estimateInputTokens(p StreamParams) int {
	total := (len(p.System) + 3) / 4
	for _, m := range p.Messages {
		total += (len(m.Content) + 3) / 4
	}
	return total
}
