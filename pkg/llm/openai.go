package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"hexona-gpts-go/internal/config"
)

// openAICompatibleClient 覆盖所有 OpenAI 兼容的聊天端点：
// OpenAI 本体、OpenRouter 与 Perplexity 直连。
type openAICompatibleClient struct {
	name   string
	cfg    config.ProviderConfig
	client *http.Client
	// trimModelPrefix 在发送前从模型名剥离路由前缀。
	// Perplexity 直连时 "perplexity/sonar" 需要变为 "sonar"。
	trimModelPrefix string
}

// NewOpenAICompatibleClient 创建一个 OpenAI 兼容端点的客户端。
func NewOpenAICompatibleClient(name string, cfg config.ProviderConfig, trimModelPrefix string) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &openAICompatibleClient{
		name:            name,
		cfg:             cfg,
		client:          &http.Client{},
		trimModelPrefix: trimModelPrefix,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAICompatibleClient) model(model string) string {
	if c.trimModelPrefix != "" {
		return strings.TrimPrefix(model, c.trimModelPrefix)
	}
	return model
}

func (c *openAICompatibleClient) newRequest(ctx context.Context, body any) (*http.Request, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	return req, nil
}

// StreamChat 调用 OpenAI 兼容的聊天接口并流式转发增量内容。
// system 提示词作为首条 system 消息发送。
func (c *openAICompatibleClient) StreamChat(ctx context.Context, p StreamParams, w TokenWriter) (Usage, error) {
	messages := make([]Message, 0, len(p.Messages)+1)
	if p.System != "" {
		messages = append(messages, Message{Role: "system", Content: p.System})
	}
	messages = append(messages, p.Messages...)

	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req, err := c.newRequest(ctx, chatRequest{
		Model:       c.model(p.Model),
		Messages:    messages,
		Stream:      true,
		Temperature: p.Temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return Usage{}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to call %s chat api: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Usage{}, fmt.Errorf("%s chat api returned non-200 status: %s, body: %s", c.name, resp.Status, string(bodyBytes))
	}

	chunks := 0
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return Usage{}, fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if strings.TrimSpace(data) == "[DONE]" {
			break
		}

		var chunk chatStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := w.WriteToken(chunk.Choices[0].Delta.Content); err != nil {
				return Usage{}, fmt.Errorf("failed to write token: %w", err)
			}
			chunks++
		}
	}

	// 流式接口不回传用量，按字符数与分块数折算
	return Usage{
		InputTokens:  estimateInputTokens(p),
		OutputTokens: chunks * 4,
	}, nil
}

// Complete 执行一次非流式调用并返回首个 choice 的内容。
func (c *openAICompatibleClient) Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = 256
	}
	req, err := c.newRequest(ctx, chatRequest{
		Model:     c.model(model),
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call %s chat api: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s chat api returned non-200 status: %s, body: %s", c.name, resp.Status, string(bodyBytes))
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode %s chat response: %w", c.name, err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
