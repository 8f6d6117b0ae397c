package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/gpts"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/ratelimit"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/pkg/extract"
	"hexona-gpts-go/pkg/llm"
	"hexona-gpts-go/pkg/log"
	"hexona-gpts-go/pkg/tasks"

	"gorm.io/gorm"
)

// ChatRequest 是一次流式对话的入参。ConversationID 为空时创建新会话。
type ChatRequest struct {
	GptSlug        string
	ClientID       *string
	ConversationID string
	Message        string
	Attachments    []extract.Attachment
}

// StreamEmitter 抽象了对话事件的下发通道，由传输层实现。
// 事件顺序固定：先 ConversationID，随后若干 Content，最后 Error 至多一次，
// 流以 Done 收尾。
type StreamEmitter interface {
	EmitConversationID(id string) error
	EmitContent(token string) error
	EmitError(message string) error
	Done() error
}

var (
	// ErrRateLimited 表示用户触发了消息频率限制。
	ErrRateLimited = errors.New("You've reached the message limit (50/hour). Please try again later.")
	// ErrGptUnavailable 表示助手被后台下线。
	ErrGptUnavailable = errors.New("This GPT is currently unavailable")
	// ErrUnknownGpt 表示请求了目录中不存在的助手。
	ErrUnknownGpt = errors.New("unknown gpt")
)

// ChatService 串起一次对话的完整流程：准入、上下文装配、路由、流式
// 下发以及收尾持久化。
type ChatService interface {
	StreamResponse(ctx context.Context, user *model.User, req ChatRequest, emitter StreamEmitter) error
}

type chatService struct {
	contextService   ContextService
	historyService   HistoryService
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	gptConfigRepo    repository.GptConfigRepository
	usageRepo        repository.UsageRepository
	dispatcher       *llm.Dispatcher
	limiter          *ratelimit.Limiter
	queue            tasks.Queue
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	contextService ContextService,
	historyService HistoryService,
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	gptConfigRepo repository.GptConfigRepository,
	usageRepo repository.UsageRepository,
	dispatcher *llm.Dispatcher,
	limiter *ratelimit.Limiter,
	queue tasks.Queue,
) ChatService {
	return &chatService{
		contextService:   contextService,
		historyService:   historyService,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		gptConfigRepo:    gptConfigRepo,
		usageRepo:        usageRepo,
		dispatcher:       dispatcher,
		limiter:          limiter,
		queue:            queue,
	}
}

func (s *chatService) StreamResponse(ctx context.Context, user *model.User, req ChatRequest, emitter StreamEmitter) error {
	if !gpts.Exists(req.GptSlug) {
		return ErrUnknownGpt
	}
	if !s.limiter.Admit(ctx, user.ID) {
		return ErrRateLimited
	}

	// 后台配置可以覆盖提示词、模型与温度，也可以整个下线一个助手
	gptConfig, err := s.gptConfigRepo.GetBySlug(ctx, req.GptSlug)
	if err != nil && err != gorm.ErrRecordNotFound {
		return fmt.Errorf("load gpt config: %w", err)
	}
	if gptConfig != nil && !gptConfig.IsActive {
		return ErrGptUnavailable
	}

	conversationID, err := s.ensureConversation(ctx, user.ID, req)
	if err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}

	// 先落库用户消息，使其进入随后加载的历史窗口
	if err := s.messageRepo.Create(ctx, &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        req.Message,
	}); err != nil {
		return fmt.Errorf("save user message: %w", err)
	}

	// 上下文装配与历史加载互不依赖，并行执行
	var (
		wg      sync.WaitGroup
		layers  ContextLayers
		history []model.ChatTurn
		histErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		layers = s.contextService.BuildLayers(ctx, user.ID, req.GptSlug, req.ClientID, req.Message)
	}()
	go func() {
		defer wg.Done()
		history, histErr = s.historyService.Load(ctx, conversationID)
	}()
	wg.Wait()
	if histErr != nil {
		return fmt.Errorf("load history: %w", histErr)
	}

	basePrompt := gpts.DefaultSystemPrompt(req.GptSlug)
	if gptConfig != nil && gptConfig.SystemPrompt != "" {
		basePrompt = gptConfig.SystemPrompt
	}
	systemPrompt := s.contextService.AssembleSystemPrompt(basePrompt, layers)

	messages := s.composeMessages(history, req)

	modelOverride := ""
	var temperature *float64
	if gptConfig != nil {
		modelOverride = gptConfig.ModelOverride
		temperature = gptConfig.Temperature
	}
	routing := llm.Resolve(req.GptSlug, modelOverride)

	if err := emitter.EmitConversationID(conversationID); err != nil {
		return fmt.Errorf("emit conversation id: %w", err)
	}

	// 拦截 token 流以同时捕获完整回答
	answerBuilder := &strings.Builder{}
	writer := &emitterWriter{emitter: emitter, answer: answerBuilder}

	usage, streamErr := s.dispatcher.StreamChat(ctx, routing.Provider, llm.StreamParams{
		Model:       routing.Model,
		System:      systemPrompt,
		Messages:    toLLMMessages(messages),
		Temperature: temperature,
	}, writer)

	fullAnswer := answerBuilder.String()

	if streamErr != nil {
		// 客户端断开：只保留已生成的部分回答。中止与正常完成是互斥的
		// 终态，不记用量、不触发任何后台任务
		if ctx.Err() != nil {
			if fullAnswer != "" {
				s.persistPartial(conversationID, fullAnswer, usage)
			}
			return nil
		}
		log.Errorf("stream error (provider=%s model=%s): %v", routing.Provider, routing.Model, streamErr)
		if err := emitter.EmitError(classifyStreamError(streamErr, routing.Provider)); err != nil {
			return err
		}
		return emitter.Done()
	}

	// 持久化使用后台上下文，响应写完后客户端断开不影响落库
	s.persistTurn(user, req, conversationID, fullAnswer, routing, usage)
	return emitter.Done()
}

func (s *chatService) ensureConversation(ctx context.Context, userID uint, req ChatRequest) (string, error) {
	if req.ConversationID != "" {
		// 校验归属，防止跨租户续写
		conv, err := s.conversationRepo.FindByIDForUser(ctx, req.ConversationID, userID)
		if err != nil {
			return "", err
		}
		return conv.ID, nil
	}
	conv, err := s.conversationRepo.Create(ctx, userID, req.GptSlug, req.ClientID)
	if err != nil {
		return "", err
	}
	return conv.ID, nil
}

// composeMessages 把附件提取文本内联进最后一条用户消息，历史中保存的
// 仍是不带附件的原始消息。
func (s *chatService) composeMessages(history []model.ChatTurn, req ChatRequest) []model.ChatTurn {
	if len(req.Attachments) == 0 || len(history) == 0 {
		return history
	}

	var b strings.Builder
	b.WriteString(req.Message)
	for i := range req.Attachments {
		a := &req.Attachments[i]
		b.WriteString("\n\n")
		b.WriteString(a.InlineHeader())
		b.WriteString("\n")
		b.WriteString(a.ExtractedText)
	}

	out := make([]model.ChatTurn, len(history))
	copy(out, history)
	out[len(out)-1] = model.ChatTurn{Role: model.RoleUser, Content: b.String()}
	return out
}

// persistPartial 落库中止回合的部分回答。部分完成好过静默丢失，
// 但后续的完成侧副作用一概不执行。
func (s *chatService) persistPartial(conversationID, answer string, usage llm.Usage) {
	if err := s.messageRepo.Create(context.Background(), &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        answer,
		TokensUsed:     usage.InputTokens + usage.OutputTokens,
	}); err != nil {
		log.Errorf("save partial assistant message failed: %v", err)
	}
}

// persistTurn 在流结束后把助手回复、用量与后台任务落地。
// 使用独立的后台上下文，原始请求取消不影响这里。
func (s *chatService) persistTurn(user *model.User, req ChatRequest, conversationID, answer string, routing llm.Routing, usage llm.Usage) {
	ctx := context.Background()

	if err := s.messageRepo.Create(ctx, &model.Message{
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        answer,
		TokensUsed:     usage.InputTokens + usage.OutputTokens,
	}); err != nil {
		log.Errorf("save assistant message failed: %v", err)
	}

	if err := s.usageRepo.Create(ctx, &model.UsageLog{
		UserID:        user.ID,
		GptSlug:       req.GptSlug,
		Provider:      routing.Provider,
		Model:         routing.Model,
		TokensInput:   usage.InputTokens,
		TokensOutput:  usage.OutputTokens,
		EstimatedCost: llm.EstimateCost(routing.Model, usage.InputTokens, usage.OutputTokens),
	}); err != nil {
		log.Errorf("save usage log failed: %v", err)
	}

	if err := s.conversationRepo.Touch(ctx, conversationID); err != nil {
		log.Errorf("touch conversation %s failed: %v", conversationID, err)
	}

	messageCount, err := s.messageRepo.CountByConversation(ctx, conversationID)
	if err != nil {
		log.Errorf("count messages for conversation %s failed: %v", conversationID, err)
		return
	}

	// 首轮问答结束后生成标题
	if messageCount == 2 {
		s.enqueue(tasks.ChatTask{
			Kind:           tasks.KindGenerateTitle,
			UserID:         user.ID,
			GptSlug:        req.GptSlug,
			ConversationID: conversationID,
			UserMessage:    req.Message,
			AssistantReply: answer,
		})
	}

	// 每隔固定轮次刷新一次摘要，滑动窗口之外的上下文始终有兜底
	every := int64(config.Conf.Chat.SummarizeEvery)
	if messageCount >= every && messageCount%every == 0 {
		s.enqueue(tasks.ChatTask{
			Kind:           tasks.KindSummarizeMemory,
			UserID:         user.ID,
			GptSlug:        req.GptSlug,
			ConversationID: conversationID,
		})
	}

	s.enqueue(tasks.ChatTask{
		Kind:   tasks.KindTouchLastActive,
		UserID: user.ID,
	})
}

func (s *chatService) enqueue(task tasks.ChatTask) {
	if err := s.queue.Enqueue(task); err != nil {
		log.Errorf("enqueue task %s failed: %v", task.Kind, err)
	}
}

// classifyStreamError 把底层错误翻译成适合直接展示给用户的提示。
func classifyStreamError(err error, provider string) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "rate"):
		return "Rate limit reached. Please wait a moment and try again."
	case strings.Contains(msg, "context_length"), strings.Contains(msg, "too many tokens"):
		return "This conversation is too long. Please start a new conversation."
	default:
		return fmt.Sprintf("Something went wrong (%s). Please try again.", provider)
	}
}

func toLLMMessages(turns []model.ChatTurn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// emitterWriter 把 token 转发给下发通道的同时累积完整回答。
type emitterWriter struct {
	emitter StreamEmitter
	answer  *strings.Builder
}

func (w *emitterWriter) WriteToken(token string) error {
	w.answer.WriteString(token)
	return w.emitter.EmitContent(token)
}
