package service

import (
	"context"
	"fmt"
	"strings"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/pkg/llm"
	"hexona-gpts-go/pkg/log"
)

// MemoryService 负责后台的会话摘要与记忆维护，以及会话标题生成。
// 这些调用都走便宜的摘要模型，失败只记录日志，不影响前台对话。
type MemoryService interface {
	// SummarizeIncremental 用既有摘要加最近几条消息做增量合并，
	// 结果同时写入会话摘要与 (user, gpt) 记忆行。
	SummarizeIncremental(ctx context.Context, userID uint, gptSlug, conversationID string) error
	// SummarizeFull 对整段会话做一次性摘要，消息数量有上限。
	SummarizeFull(ctx context.Context, userID uint, gptSlug, conversationID string) error
	// GenerateTitle 根据首轮问答生成不超过五个词的会话标题。
	GenerateTitle(ctx context.Context, conversationID, userMessage, assistantReply string) error
}

type memoryService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	memoryRepo       repository.MemoryRepository
	dispatcher       *llm.Dispatcher
}

// NewMemoryService 创建一个新的 MemoryService 实例。
func NewMemoryService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	memoryRepo repository.MemoryRepository,
	dispatcher *llm.Dispatcher,
) MemoryService {
	return &memoryService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		memoryRepo:       memoryRepo,
		dispatcher:       dispatcher,
	}
}

func (s *memoryService) SummarizeIncremental(ctx context.Context, userID uint, gptSlug, conversationID string) error {
	conv, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	recent, err := s.messageRepo.FindRecent(ctx, conversationID, config.Conf.Chat.SummarizeRecent)
	if err != nil {
		return fmt.Errorf("load recent messages: %w", err)
	}
	if len(recent) == 0 {
		return nil
	}

	prompt := buildSummaryPrompt(conv.Summary, renderTranscript(recent))
	return s.summarizeAndStore(ctx, userID, gptSlug, conversationID, prompt)
}

func (s *memoryService) SummarizeFull(ctx context.Context, userID uint, gptSlug, conversationID string) error {
	msgs, err := s.messageRepo.FindOldest(ctx, conversationID, config.Conf.Chat.SummarizeFullCap)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	// 不足一轮问答时没有可摘要的内容
	if len(msgs) < 2 {
		return nil
	}

	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s: %s", m.Role, truncateRunes(m.Content, 500)))
	}
	prompt := fmt.Sprintf(
		"Summarize the key facts and context from this conversation in 2-3 sentences. Focus on information useful for future conversations. Be concise.\n\n%s",
		b.String(),
	)
	return s.summarizeAndStore(ctx, userID, gptSlug, conversationID, prompt)
}

func (s *memoryService) summarizeAndStore(ctx context.Context, userID uint, gptSlug, conversationID, prompt string) error {
	summary, err := s.dispatcher.Complete(ctx, config.Conf.Chat.SummaryProvider, config.Conf.Chat.SummaryModel, prompt, 250)
	if err != nil {
		return fmt.Errorf("summarize conversation %s: %w", conversationID, err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}

	if err := s.memoryRepo.Upsert(ctx, userID, gptSlug, summary); err != nil {
		log.Errorf("upsert gpt memory for user %d gpt %s failed: %v", userID, gptSlug, err)
	}
	if err := s.conversationRepo.UpdateSummary(ctx, conversationID, summary); err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}
	return nil
}

func (s *memoryService) GenerateTitle(ctx context.Context, conversationID, userMessage, assistantReply string) error {
	prompt := fmt.Sprintf(
		"Generate a very short title (max 5 words) for this conversation. Just the title, nothing else.\n\nUser: %s\nAI: %s",
		truncateRunes(userMessage, 200), truncateRunes(assistantReply, 200),
	)
	title, err := s.dispatcher.Complete(ctx, config.Conf.Chat.SummaryProvider, config.Conf.Chat.SummaryModel, prompt, 30)
	if err != nil {
		return fmt.Errorf("generate title for conversation %s: %w", conversationID, err)
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return nil
	}
	return s.conversationRepo.UpdateTitle(ctx, conversationID, title)
}

// buildSummaryPrompt 已有摘要时走增量合并，否则对最近消息做首次摘要。
func buildSummaryPrompt(existingSummary, transcript string) string {
	if existingSummary != "" {
		return fmt.Sprintf(
			"Here is the existing summary of this conversation:\n%q\n\nHere are the latest messages:\n%s\n\nUpdate the summary to incorporate the new information. Keep it to 3-4 concise sentences covering all key facts, decisions, and context that would be useful for continuity. Only output the updated summary.",
			existingSummary, transcript,
		)
	}
	return fmt.Sprintf(
		"Summarize this conversation in 2-3 concise sentences. Focus on key facts, decisions, and context that would be useful for continuity.\n\n%s",
		transcript,
	)
}

// renderTranscript 把倒序的消息窗口渲染成时间升序的 role: content 文本。
func renderTranscript(desc []model.Message) string {
	var b strings.Builder
	for i := len(desc) - 1; i >= 0; i-- {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s: %s", desc[i].Role, desc[i].Content))
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
