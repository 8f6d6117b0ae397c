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

const anthropicVersion = "2023-06-01"

type anthropicClient struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewAnthropicClient 创建 Anthropic Messages API 的客户端。
func NewAnthropicClient(cfg config.ProviderConfig) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &anthropicClient{cfg: cfg, client: &http.Client{}}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// anthropicEvent 覆盖流式事件中我们关心的字段。
// message_start 携带输入用量，content_block_delta 携带文本增量，
// message_delta 携带输出用量。
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Message struct {
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *anthropicClient) newRequest(ctx context.Context, body any) (*http.Request, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/v1/messages", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

// StreamChat 调用 Anthropic Messages API 并流式转发文本增量。
func (c *anthropicClient) StreamChat(ctx context.Context, p StreamParams, w TokenWriter) (Usage, error) {
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	req, err := c.newRequest(ctx, anthropicRequest{
		Model:       p.Model,
		MaxTokens:   maxTokens,
		System:      p.System,
		Messages:    p.Messages,
		Temperature: p.Temperature,
		Stream:      true,
	})
	if err != nil {
		return Usage{}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Usage{}, fmt.Errorf("anthropic api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var usage Usage
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return usage, fmt.Errorf("failed to read from stream: %w", err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))

		var ev anthropicEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			usage.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_delta":
			if ev.Delta.Text != "" {
				if err := w.WriteToken(ev.Delta.Text); err != nil {
					return usage, fmt.Errorf("failed to write token: %w", err)
				}
			}
		case "message_delta":
			usage.OutputTokens = ev.Usage.OutputTokens
		case "message_stop":
			return usage, nil
		}
	}
	return usage, nil
}

// Complete 执行一次非流式调用并返回首个文本块。
func (c *anthropicClient) Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	if maxTokens == 0 {
		maxTokens = 256
	}
	req, err := c.newRequest(ctx, anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
