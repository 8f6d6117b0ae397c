package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hexona-gpts-go/internal/gpts"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/ratelimit"
	"hexona-gpts-go/pkg/extract"
	"hexona-gpts-go/pkg/llm"
	"hexona-gpts-go/pkg/tasks"
)

type chatFixture struct {
	convRepo      *fakeConversationRepo
	msgRepo       *fakeMessageRepo
	gptConfigRepo *fakeGptConfigRepo
	usageRepo     *fakeUsageRepo
	client        *fakeLLM
	queue         *fakeQueue
	svc           ChatService
}

// newChatFixture 组装一条完整的聊天管线，上游端点与存储全部为进程内假实现。
func newChatFixture(provider string, client *fakeLLM) *chatFixture {
	f := &chatFixture{
		convRepo:      newFakeConversationRepo(),
		msgRepo:       newFakeMessageRepo(),
		gptConfigRepo: newFakeGptConfigRepo(),
		usageRepo:     newFakeUsageRepo(),
		client:        client,
		queue:         &fakeQueue{},
	}
	contextSvc := NewContextService(newFakeProfileRepo(), newFakeMemoryRepo(), f.convRepo, f.msgRepo, &fakeKnowledgeService{})
	historySvc := NewHistoryService(f.convRepo, f.msgRepo)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 50, time.Hour)
	f.svc = NewChatService(
		contextSvc, historySvc,
		f.convRepo, f.msgRepo, f.gptConfigRepo, f.usageRepo,
		newTestDispatcher(provider, client), limiter, f.queue,
	)
	return f
}

func testUser() *model.User {
	return &model.User{ID: 1, Email: "owner@agency.io", Username: "owner", Role: "USER", IsActive: true}
}

func TestStreamResponseHappyPath(t *testing.T) {
	client := &fakeLLM{
		tokens: []string{"Hello", " there"},
		usage:  llm.Usage{InputTokens: 100, OutputTokens: 20},
	}
	f := newChatFixture(gpts.ProviderAnthropic, client)
	emitter := &fakeEmitter{}

	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{
		GptSlug: "sales",
		Message: "Write me an outreach script",
	}, emitter)
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}

	wantEvents := []string{"conversationId", "content", "content", "done"}
	if len(emitter.events) != len(wantEvents) {
		t.Fatalf("events = %v, want %v", emitter.events, wantEvents)
	}
	for i, e := range wantEvents {
		if emitter.events[i] != e {
			t.Fatalf("events = %v, want %v", emitter.events, wantEvents)
		}
	}
	if emitter.answer() != "Hello there" {
		t.Errorf("streamed answer = %q", emitter.answer())
	}

	// 用户消息和助手回复都已落库
	msgs, _ := f.msgRepo.ListByConversation(context.Background(), emitter.conversationID)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[0].Content != "Write me an outreach script" {
		t.Errorf("user message not persisted first: %+v", msgs[0])
	}
	if msgs[1].Role != model.RoleAssistant || msgs[1].Content != "Hello there" {
		t.Errorf("assistant message = %+v", msgs[1])
	}
	if msgs[1].TokensUsed != 120 {
		t.Errorf("assistant TokensUsed = %d, want 120", msgs[1].TokensUsed)
	}

	// 用量记录带上了目录解析出的路由
	if len(f.usageRepo.entries) != 1 {
		t.Fatalf("expected 1 usage log, got %d", len(f.usageRepo.entries))
	}
	entry := f.usageRepo.entries[0]
	if entry.Provider != gpts.ProviderAnthropic || entry.Model != "claude-sonnet-4-6" {
		t.Errorf("usage routing = %s/%s", entry.Provider, entry.Model)
	}
	if entry.TokensInput != 100 || entry.TokensOutput != 20 {
		t.Errorf("usage tokens = %d/%d", entry.TokensInput, entry.TokensOutput)
	}
	wantCost := llm.EstimateCost("claude-sonnet-4-6", 100, 20)
	if entry.EstimatedCost != wantCost {
		t.Errorf("usage cost = %v, want %v", entry.EstimatedCost, wantCost)
	}

	// 首轮结束：标题任务 + 活跃时间任务，未到摘要轮次
	kinds := f.queue.kinds()
	if len(kinds) != 2 || kinds[0] != tasks.KindGenerateTitle || kinds[1] != tasks.KindTouchLastActive {
		t.Errorf("tasks = %v", kinds)
	}
}

func TestStreamResponseUnknownGpt(t *testing.T) {
	f := newChatFixture(gpts.ProviderAnthropic, &fakeLLM{})
	emitter := &fakeEmitter{}

	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{
		GptSlug: "no-such-gpt",
		Message: "hello",
	}, emitter)
	if !errors.Is(err, ErrUnknownGpt) {
		t.Fatalf("err = %v, want ErrUnknownGpt", err)
	}
	if len(emitter.events) != 0 {
		t.Errorf("no events should be emitted before admission, got %v", emitter.events)
	}
}

func TestStreamResponseRateLimited(t *testing.T) {
	client := &fakeLLM{tokens: []string{"ok"}}
	f := newChatFixture(gpts.ProviderAnthropic, client)
	// 单独装一个限额为 1 的闸门
	contextSvc := NewContextService(newFakeProfileRepo(), newFakeMemoryRepo(), f.convRepo, f.msgRepo, &fakeKnowledgeService{})
	historySvc := NewHistoryService(f.convRepo, f.msgRepo)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 1, time.Hour)
	svc := NewChatService(contextSvc, historySvc, f.convRepo, f.msgRepo, f.gptConfigRepo, f.usageRepo,
		newTestDispatcher(gpts.ProviderAnthropic, client), limiter, f.queue)

	user := testUser()
	if err := svc.StreamResponse(context.Background(), user, ChatRequest{GptSlug: "sales", Message: "first"}, &fakeEmitter{}); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	err := svc.StreamResponse(context.Background(), user, ChatRequest{GptSlug: "sales", Message: "second"}, &fakeEmitter{})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestStreamResponseInactiveGpt(t *testing.T) {
	f := newChatFixture(gpts.ProviderAnthropic, &fakeLLM{})
	_ = f.gptConfigRepo.Upsert(context.Background(), &model.GptConfig{GptSlug: "sales", IsActive: false})

	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{GptSlug: "sales", Message: "hello"}, &fakeEmitter{})
	if !errors.Is(err, ErrGptUnavailable) {
		t.Fatalf("err = %v, want ErrGptUnavailable", err)
	}
}

func TestStreamResponseConfigOverrides(t *testing.T) {
	temp := 0.2
	client := &fakeLLM{tokens: []string{"ok"}}
	f := newChatFixture(gpts.ProviderAnthropic, client)
	_ = f.gptConfigRepo.Upsert(context.Background(), &model.GptConfig{
		GptSlug:       "sales",
		SystemPrompt:  "Custom sales persona.",
		ModelOverride: "claude-haiku-4-5-20251001",
		Temperature:   &temp,
		IsActive:      true,
	})

	emitter := &fakeEmitter{}
	if err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{GptSlug: "sales", Message: "hello"}, emitter); err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}

	if !strings.HasPrefix(client.lastParams.System, "Custom sales persona.") {
		t.Errorf("system prompt should start with the configured override: %q", client.lastParams.System)
	}
	if client.lastParams.Model != "claude-haiku-4-5-20251001" {
		t.Errorf("model = %q, want override", client.lastParams.Model)
	}
	if client.lastParams.Temperature == nil || *client.lastParams.Temperature != 0.2 {
		t.Errorf("temperature not forwarded: %v", client.lastParams.Temperature)
	}
	// 覆盖只换 model，provider 和计价跟着新模型走
	if f.usageRepo.entries[0].Model != "claude-haiku-4-5-20251001" {
		t.Errorf("usage model = %q", f.usageRepo.entries[0].Model)
	}
}

func TestStreamResponseContinuesConversation(t *testing.T) {
	client := &fakeLLM{tokens: []string{"reply"}}
	f := newChatFixture(gpts.ProviderAnthropic, client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "sales", nil)
	_ = f.msgRepo.Create(context.Background(), &model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "earlier question"})
	_ = f.msgRepo.Create(context.Background(), &model.Message{ConversationID: conv.ID, Role: model.RoleAssistant, Content: "earlier answer"})

	emitter := &fakeEmitter{}
	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{
		GptSlug:        "sales",
		ConversationID: conv.ID,
		Message:        "follow-up",
	}, emitter)
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}
	if emitter.conversationID != conv.ID {
		t.Errorf("conversationId = %q, want %q", emitter.conversationID, conv.ID)
	}

	// 历史窗口包含之前的回合和刚落库的新消息
	got := client.lastParams.Messages
	if len(got) != 3 {
		t.Fatalf("expected 3 history turns, got %d", len(got))
	}
	if got[0].Content != "earlier question" || got[2].Content != "follow-up" {
		t.Errorf("history order wrong: %+v", got)
	}
}

func TestStreamResponseRejectsForeignConversation(t *testing.T) {
	f := newChatFixture(gpts.ProviderAnthropic, &fakeLLM{tokens: []string{"ok"}})
	foreign, _ := f.convRepo.Create(context.Background(), 42, "sales", nil)

	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{
		GptSlug:        "sales",
		ConversationID: foreign.ID,
		Message:        "hello",
	}, &fakeEmitter{})
	if err == nil {
		t.Fatal("expected error when continuing another user's conversation")
	}
}

func TestStreamResponseInlinesAttachments(t *testing.T) {
	client := &fakeLLM{tokens: []string{"ok"}}
	f := newChatFixture(gpts.ProviderAnthropic, client)

	emitter := &fakeEmitter{}
	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{
		GptSlug: "proposal",
		Message: "Review this document",
		Attachments: []extract.Attachment{
			{Type: "pdf", FileName: "brief.pdf", ExtractedText: "project brief body"},
		},
	}, emitter)
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}

	last := client.lastParams.Messages[len(client.lastParams.Messages)-1]
	if !strings.Contains(last.Content, "[Attached pdf: brief.pdf]") || !strings.Contains(last.Content, "project brief body") {
		t.Errorf("attachment not inlined into last turn: %q", last.Content)
	}

	// 落库的用户消息保持不带附件的原文
	msgs, _ := f.msgRepo.ListByConversation(context.Background(), emitter.conversationID)
	if msgs[0].Content != "Review this document" {
		t.Errorf("persisted user message = %q", msgs[0].Content)
	}
}

func TestStreamResponseSummarizeCadence(t *testing.T) {
	client := &fakeLLM{tokens: []string{"ok"}}
	f := newChatFixture(gpts.ProviderAnthropic, client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "sales", nil)
	// 预置一轮问答，本次对话结束后总数到达摘要轮次
	_ = f.msgRepo.Create(context.Background(), &model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "q1"})
	_ = f.msgRepo.Create(context.Background(), &model.Message{ConversationID: conv.ID, Role: model.RoleAssistant, Content: "a1"})

	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{
		GptSlug:        "sales",
		ConversationID: conv.ID,
		Message:        "q2",
	}, &fakeEmitter{})
	if err != nil {
		t.Fatalf("StreamResponse: %v", err)
	}

	kinds := f.queue.kinds()
	if len(kinds) != 2 || kinds[0] != tasks.KindSummarizeMemory || kinds[1] != tasks.KindTouchLastActive {
		t.Errorf("tasks at message 4 = %v", kinds)
	}
}

func TestStreamResponseUpstreamError(t *testing.T) {
	client := &fakeLLM{streamErr: errors.New("upstream 500")}
	f := newChatFixture(gpts.ProviderAnthropic, client)
	emitter := &fakeEmitter{}

	err := f.svc.StreamResponse(context.Background(), testUser(), ChatRequest{GptSlug: "sales", Message: "hello"}, emitter)
	if err != nil {
		t.Fatalf("upstream errors are reported in-stream, not returned: %v", err)
	}
	if emitter.errorMessage != "Something went wrong (anthropic). Please try again." {
		t.Errorf("error message = %q", emitter.errorMessage)
	}
	if !emitter.done {
		t.Error("stream must still end with done after an error")
	}

	// 失败的回合不落助手消息和用量
	msgs, _ := f.msgRepo.ListByConversation(context.Background(), emitter.conversationID)
	if len(msgs) != 1 {
		t.Errorf("expected only the user message persisted, got %d", len(msgs))
	}
	if len(f.usageRepo.entries) != 0 {
		t.Errorf("no usage should be logged on failure, got %d", len(f.usageRepo.entries))
	}
}

// abortingLLM 在写出部分分块后模拟客户端断开请求。
type abortingLLM struct {
	tokens []string
	cancel context.CancelFunc
}

func (c *abortingLLM) StreamChat(ctx context.Context, _ llm.StreamParams, w llm.TokenWriter) (llm.Usage, error) {
	for _, t := range c.tokens {
		if err := w.WriteToken(t); err != nil {
			return llm.Usage{}, err
		}
	}
	c.cancel()
	return llm.Usage{}, ctx.Err()
}

func (c *abortingLLM) Complete(context.Context, string, string, int) (string, error) {
	return "", errors.New("not used")
}

func TestStreamResponseClientAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &abortingLLM{tokens: []string{"partial ", "answer"}, cancel: cancel}

	convRepo := newFakeConversationRepo()
	msgRepo := newFakeMessageRepo()
	gptConfigRepo := newFakeGptConfigRepo()
	usageRepo := newFakeUsageRepo()
	queue := &fakeQueue{}
	contextSvc := NewContextService(newFakeProfileRepo(), newFakeMemoryRepo(), convRepo, msgRepo, &fakeKnowledgeService{})
	historySvc := NewHistoryService(convRepo, msgRepo)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), 50, time.Hour)
	svc := NewChatService(contextSvc, historySvc, convRepo, msgRepo, gptConfigRepo, usageRepo,
		newTestDispatcher(gpts.ProviderAnthropic, client), limiter, queue)

	emitter := &fakeEmitter{}
	if err := svc.StreamResponse(ctx, testUser(), ChatRequest{GptSlug: "sales", Message: "hello"}, emitter); err != nil {
		t.Fatalf("abort is not an error for the caller: %v", err)
	}

	// 部分回答仍然落库
	msgs, _ := msgRepo.ListByConversation(context.Background(), emitter.conversationID)
	if len(msgs) != 2 {
		t.Fatalf("expected user message plus partial assistant message, got %d rows", len(msgs))
	}
	if msgs[1].Role != model.RoleAssistant || msgs[1].Content != "partial answer" {
		t.Errorf("partial assistant message = %+v", msgs[1])
	}

	// 中止回合不记用量，也不触发任何后台任务
	if len(usageRepo.entries) != 0 {
		t.Errorf("usage rows on abort = %d, want 0", len(usageRepo.entries))
	}
	if kinds := queue.kinds(); len(kinds) != 0 {
		t.Errorf("background tasks on abort = %v, want none", kinds)
	}
	if emitter.errorMessage != "" || emitter.done {
		t.Errorf("aborted stream must not emit error or completion marker: %+v", emitter.events)
	}
}

func TestClassifyStreamError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limit", errors.New("429 rate limit exceeded"), "Rate limit reached. Please wait a moment and try again."},
		{"context length", errors.New("context_length_exceeded"), "This conversation is too long. Please start a new conversation."},
		{"token overflow", errors.New("prompt has too many tokens"), "This conversation is too long. Please start a new conversation."},
		{"generic", errors.New("connection reset"), "Something went wrong (openai). Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStreamError(tt.err, "openai"); got != tt.want {
				t.Errorf("classifyStreamError() = %q, want %q", got, tt.want)
			}
		})
	}
}
