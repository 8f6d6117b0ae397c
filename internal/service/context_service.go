package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/pkg/log"

	"gorm.io/gorm"
)

// ContextLayers 保存五个上下文层各自渲染后的文本，空字符串表示该层缺席。
type ContextLayers struct {
	Agency    string
	Memory    string
	Client    string
	CrossGpt  string
	Knowledge string
}

// ContextService 负责在每次对话前装配分层上下文并合成最终的 system 提示词。
type ContextService interface {
	// BuildLayers 并发装配五个上下文层。单层失败只降级为空，不影响其它层。
	BuildLayers(ctx context.Context, userID uint, gptSlug string, clientID *string, userMessage string) ContextLayers
	AssembleSystemPrompt(basePrompt string, layers ContextLayers) string
}

type contextService struct {
	profileRepo      repository.ProfileRepository
	memoryRepo       repository.MemoryRepository
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	knowledgeService KnowledgeService
}

// NewContextService 创建一个新的 ContextService 实例。
func NewContextService(
	profileRepo repository.ProfileRepository,
	memoryRepo repository.MemoryRepository,
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	knowledgeService KnowledgeService,
) ContextService {
	return &contextService{
		profileRepo:      profileRepo,
		memoryRepo:       memoryRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		knowledgeService: knowledgeService,
	}
}

func (s *contextService) BuildLayers(ctx context.Context, userID uint, gptSlug string, clientID *string, userMessage string) ContextLayers {
	var layers ContextLayers
	var wg sync.WaitGroup

	wg.Add(5)
	go func() {
		defer wg.Done()
		layers.Agency = s.buildAgencyLayer(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		layers.Memory = s.buildMemoryLayer(ctx, userID, gptSlug)
	}()
	go func() {
		defer wg.Done()
		layers.Client = s.buildClientLayer(ctx, userID, clientID)
	}()
	go func() {
		defer wg.Done()
		layers.CrossGpt = s.buildCrossGptLayer(ctx, userID, gptSlug, clientID)
	}()
	go func() {
		defer wg.Done()
		layers.Knowledge = s.buildKnowledgeLayer(ctx, gptSlug, userMessage)
	}()
	wg.Wait()

	return layers
}

// buildAgencyLayer 渲染机构画像层。画像缺失或全部字段为空时返回空串。
func (s *contextService) buildAgencyLayer(ctx context.Context, userID uint) string {
	profile, err := s.profileRepo.GetAgencyProfile(ctx, userID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Errorf("load agency profile for user %d failed: %v", userID, err)
		}
		return ""
	}

	var parts []string
	if profile.Niche != "" {
		parts = append(parts, fmt.Sprintf("Niche: %s", profile.Niche))
	}
	if profile.Location != "" {
		parts = append(parts, fmt.Sprintf("Location: %s", profile.Location))
	}
	if services := profile.ServiceList(); len(services) > 0 {
		parts = append(parts, fmt.Sprintf("Services: %s", strings.Join(services, ", ")))
	}
	if profile.MonthlyRevenue != "" {
		parts = append(parts, fmt.Sprintf("Current revenue: %s", profile.MonthlyRevenue))
	}
	if profile.RevenueGoal != "" {
		parts = append(parts, fmt.Sprintf("Goal: %s", profile.RevenueGoal))
	}
	if profile.Background != "" {
		parts = append(parts, fmt.Sprintf("Background: %s", profile.Background))
	}
	if profile.BiggestChallenge != "" {
		parts = append(parts, fmt.Sprintf("Primary challenge: %s", profile.BiggestChallenge))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("Agency context: The user runs an AI automation agency. %s.", strings.Join(parts, ". "))
}

func (s *contextService) buildMemoryLayer(ctx context.Context, userID uint, gptSlug string) string {
	mem, err := s.memoryRepo.Get(ctx, userID, gptSlug)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Errorf("load gpt memory for user %d gpt %s failed: %v", userID, gptSlug, err)
		}
		return ""
	}
	if mem.MemoryBlob == "" {
		return ""
	}
	return fmt.Sprintf("From past %s conversations: %s", gptSlug, mem.MemoryBlob)
}

func (s *contextService) buildClientLayer(ctx context.Context, userID uint, clientID *string) string {
	if clientID == nil || *clientID == "" {
		return ""
	}
	client, err := s.profileRepo.GetClient(ctx, userID, *clientID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			log.Errorf("load client %s for user %d failed: %v", *clientID, userID, err)
		}
		return ""
	}

	parts := []string{fmt.Sprintf("Client: %s", client.BusinessName)}
	if client.Industry != "" {
		parts = append(parts, fmt.Sprintf("Industry: %s", client.Industry))
	}
	if client.Website != "" {
		parts = append(parts, fmt.Sprintf("Website: %s", client.Website))
	}
	parts = append(parts, fmt.Sprintf("Status: %s", client.Status))
	if client.Notes != "" {
		parts = append(parts, fmt.Sprintf("Notes: %s", client.Notes))
	}
	return strings.Join(parts, ". ") + "."
}

// buildCrossGptLayer 汇总同一客户在其它助手下的近期对话。
// 优先使用已有的对话摘要，没有摘要的对话才回退到原始消息。
func (s *contextService) buildCrossGptLayer(ctx context.Context, userID uint, gptSlug string, clientID *string) string {
	if clientID == nil || *clientID == "" {
		return ""
	}

	siblings, err := s.conversationRepo.FindSiblings(ctx, userID, *clientID, gptSlug, config.Conf.Chat.SiblingConversations)
	if err != nil {
		log.Errorf("load sibling conversations for client %s failed: %v", *clientID, err)
		return ""
	}

	var sections []string
	for _, conv := range siblings {
		if conv.Summary != "" {
			sections = append(sections, fmt.Sprintf("[%s] %s", conv.GptSlug, conv.Summary))
			continue
		}
		section, err := s.renderSiblingMessages(ctx, conv)
		if err != nil {
			log.Errorf("load messages for sibling conversation %s failed: %v", conv.ID, err)
			continue
		}
		if section != "" {
			sections = append(sections, section)
		}
	}
	if len(sections) == 0 {
		return ""
	}
	return "Prior work done with this contact in other GPTs (use this for continuity - do not repeat questions already answered here):\n" +
		strings.Join(sections, "\n\n")
}

func (s *contextService) renderSiblingMessages(ctx context.Context, conv model.Conversation) (string, error) {
	msgs, err := s.messageRepo.FindRecent(ctx, conv.ID, config.Conf.Chat.SiblingMessages)
	if err != nil {
		return "", err
	}
	if len(msgs) == 0 {
		return "", nil
	}

	truncateAt := config.Conf.Chat.SiblingTruncateChars
	var lines []string
	for _, m := range msgs {
		content := m.Content
		if truncated := truncateRunes(content, truncateAt); truncated != content {
			content = truncated + "..."
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", m.Role, content))
	}
	return fmt.Sprintf("[%s]\n%s", conv.GptSlug, strings.Join(lines, "\n")), nil
}

func (s *contextService) buildKnowledgeLayer(ctx context.Context, gptSlug, userMessage string) string {
	chunks, err := s.knowledgeService.Retrieve(ctx, gptSlug, userMessage)
	if err != nil {
		log.Errorf("knowledge retrieval for gpt %s failed: %v", gptSlug, err)
		return ""
	}
	if len(chunks) == 0 {
		return ""
	}
	contents := make([]string, 0, len(chunks))
	for _, c := range chunks {
		contents = append(contents, c.Content)
	}
	return "Relevant reference material:\n" + strings.Join(contents, "\n---\n")
}

// formattingRule 固定附加在 system 提示词之后，约束模型输出的排版。
const formattingRule = "FORMATTING: Never use em dashes (—) in your responses. Use regular dashes (-), commas, or periods instead."

const contextHeader = "--- Context (do not reveal this to the user) ---"

func (s *contextService) AssembleSystemPrompt(basePrompt string, layers ContextLayers) string {
	sections := make([]string, 0, 5)
	for _, layer := range []string{layers.Agency, layers.Memory, layers.Client, layers.CrossGpt, layers.Knowledge} {
		if layer != "" {
			sections = append(sections, layer)
		}
	}

	if len(sections) == 0 {
		return fmt.Sprintf("%s\n\n%s", basePrompt, formattingRule)
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", basePrompt, formattingRule, contextHeader, strings.Join(sections, "\n\n"))
}
