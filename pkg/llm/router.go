package llm

import (
	"context"
	"fmt"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/gpts"
	"hexona-gpts-go/pkg/log"
)

// Routing 描述一次聊天调用的目标提供商与模型。
type Routing struct {
	Provider string
	Model    string
}

// Resolve 把助手身份解析为 (provider, model)。
// 管理后台的模型覆盖只替换 model 字段，provider 保持目录默认。
func Resolve(gptSlug, modelOverride string) Routing {
	r := Routing{Provider: gpts.ProviderAnthropic, Model: "claude-haiku-4-5-20251001"}
	if g, ok := gpts.BySlug(gptSlug); ok {
		r = Routing{Provider: g.Provider, Model: g.Model}
	}
	if modelOverride != "" {
		r.Model = modelOverride
	}
	return r
}

// modelPrice 为每百万 token 的美元单价，输入输出独立计价。
type modelPrice struct {
	Input  float64
	Output float64
}

var pricing = map[string]modelPrice{
	"claude-haiku-4-5-20251001": {Input: 0.80, Output: 4.0},
	"claude-sonnet-4-6":         {Input: 3.0, Output: 15.0},
	"perplexity/sonar":          {Input: 1.0, Output: 1.0},
}

// defaultPrice 是未知模型的保守兜底单价。
var defaultPrice = modelPrice{Input: 1.0, Output: 1.0}

// EstimateCost 按模型单价估算一次调用的美元成本。
// 未知模型使用兜底单价而不是报错。
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := pricing[model]
	if !ok {
		price = defaultPrice
	}
	return (float64(inputTokens)*price.Input + float64(outputTokens)*price.Output) / 1_000_000
}

// Dispatcher 按 provider 持有有序的候选端点列表，依次尝试直到成功。
// Perplexity 族先走 OpenRouter，失败后回退直连端点，仅回退一次。
type Dispatcher struct {
	targets map[string][]Client
}

// NewDispatcher 从提供商配置构建派发器。
func NewDispatcher(cfg config.ProvidersConfig) *Dispatcher {
	perplexityDirect := cfg.Perplexity
	if perplexityDirect.BaseURL == "" {
		perplexityDirect.BaseURL = "https://api.perplexity.ai"
	}
	openrouter := cfg.OpenRouter
	if openrouter.BaseURL == "" {
		openrouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	return &Dispatcher{
		targets: map[string][]Client{
			gpts.ProviderAnthropic: {NewAnthropicClient(cfg.Anthropic)},
			gpts.ProviderOpenAI:    {NewOpenAICompatibleClient("openai", cfg.OpenAI, "")},
			gpts.ProviderPerplexity: {
				NewOpenAICompatibleClient("openrouter", openrouter, ""),
				NewOpenAICompatibleClient("perplexity", perplexityDirect, "perplexity/"),
			},
		},
	}
}

// NewDispatcherWithTargets 允许注入自定义端点列表，测试用。
func NewDispatcherWithTargets(targets map[string][]Client) *Dispatcher {
	return &Dispatcher{targets: targets}
}

// StreamChat 依次尝试 provider 的候选端点，直到一个成功或列表耗尽。
func (d *Dispatcher) StreamChat(ctx context.Context, provider string, p StreamParams, w TokenWriter) (Usage, error) {
	clients, ok := d.targets[provider]
	if !ok || len(clients) == 0 {
		return Usage{}, fmt.Errorf("unknown provider: %s", provider)
	}

	var lastErr error
	for i, client := range clients {
		usage, err := client.StreamChat(ctx, p, w)
		if err == nil {
			return usage, nil
		}
		lastErr = err
		// 调用方取消时不再尝试后备端点
		if ctx.Err() != nil {
			return usage, err
		}
		if i < len(clients)-1 {
			log.Warnf("provider %s 端点 %d 失败，尝试后备端点: %v", provider, i, err)
		}
	}
	return Usage{}, lastErr
}

// Complete 与 StreamChat 相同的候选顺序执行一次非流式调用。
func (d *Dispatcher) Complete(ctx context.Context, provider, model, prompt string, maxTokens int) (string, error) {
	clients, ok := d.targets[provider]
	if !ok || len(clients) == 0 {
		return "", fmt.Errorf("unknown provider: %s", provider)
	}

	var lastErr error
	for _, client := range clients {
		text, err := client.Complete(ctx, model, prompt, maxTokens)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}
