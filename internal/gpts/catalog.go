// Package gpts 定义了产品内置的助手目录：每个助手的身份、
// 默认模型路由与默认系统提示词。管理后台的 GptConfig 可以覆盖
// 其中的提示词与模型，目录本身是静态兜底。
package gpts

// GPT 描述目录中的一个助手。
type GPT struct {
	Slug        string
	Name        string
	Description string
	Category    string // research / sales / fulfillment / strategy / onboarding
	Provider    string
	Model       string
}

// 提供商标识常量。
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderPerplexity = "perplexity"
)

// Catalog 是产品内置的助手目录。
var Catalog = []GPT{
	{Slug: "niche-research", Name: "Niche & Research GPT", Description: "Find the perfect niche and research prospects before sales calls.", Category: "research", Provider: ProviderPerplexity, Model: "perplexity/sonar"},
	{Slug: "pricing", Name: "Pricing GPT", Description: "Get a confident, justified price for your proposal.", Category: "sales", Provider: ProviderAnthropic, Model: "claude-sonnet-4-6"},
	{Slug: "proposal", Name: "Proposal GPT", Description: "Generate professional, tailored proposals.", Category: "sales", Provider: ProviderAnthropic, Model: "claude-sonnet-4-6"},
	{Slug: "sales", Name: "Sales GPT", Description: "Outreach scripts and objection handling.", Category: "sales", Provider: ProviderAnthropic, Model: "claude-sonnet-4-6"},
	{Slug: "workflow", Name: "Workflow Builder GPT", Description: "Assess and design automation workflows.", Category: "fulfillment", Provider: ProviderAnthropic, Model: "claude-sonnet-4-6"},
	{Slug: "prompt-engineer", Name: "Prompt Engineering GPT", Description: "Write effective prompts for agents and chatbots.", Category: "fulfillment", Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001"},
	{Slug: "contract", Name: "Contract Writing GPT", Description: "Generate professional service agreements.", Category: "fulfillment", Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001"},
	{Slug: "hamza-ai", Name: "Hamza AI", Description: "Strategic business advice for agency owners.", Category: "strategy", Provider: ProviderAnthropic, Model: "claude-sonnet-4-6"},
	{Slug: "weekly-review", Name: "Weekly Review GPT", Description: "Structured end-of-week reflections.", Category: "strategy", Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001"},
	{Slug: "agency-onboarding", Name: "Agency Onboarding", Description: "Conversational interview about the user's agency.", Category: "onboarding", Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001"},
	{Slug: "client-onboarding", Name: "Client Onboarding GPT", Description: "Welcome email, checklist and kickoff agenda.", Category: "onboarding", Provider: ProviderAnthropic, Model: "claude-haiku-4-5-20251001"},
}

// BySlug 按 slug 查找目录中的助手。
func BySlug(slug string) (GPT, bool) {
	for _, g := range Catalog {
		if g.Slug == slug {
			return g, true
		}
	}
	return GPT{}, false
}

// Exists 判断目录中是否存在该助手。
func Exists(slug string) bool {
	_, ok := BySlug(slug)
	return ok
}
