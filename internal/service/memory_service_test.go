package service

import (
	"context"
	"strings"
	"testing"

	"hexona-gpts-go/internal/gpts"
	"hexona-gpts-go/internal/model"
)

type memoryFixture struct {
	convRepo   *fakeConversationRepo
	msgRepo    *fakeMessageRepo
	memoryRepo *fakeMemoryRepo
	client     *fakeLLM
	svc        MemoryService
}

func newMemoryFixture(client *fakeLLM) *memoryFixture {
	f := &memoryFixture{
		convRepo:   newFakeConversationRepo(),
		msgRepo:    newFakeMessageRepo(),
		memoryRepo: newFakeMemoryRepo(),
		client:     client,
	}
	// 摘要默认走 anthropic 的廉价模型
	f.svc = NewMemoryService(f.convRepo, f.msgRepo, f.memoryRepo, newTestDispatcher(gpts.ProviderAnthropic, client))
	return f
}

func (f *memoryFixture) addMessage(t *testing.T, conversationID, role, content string) {
	t.Helper()
	if err := f.msgRepo.Create(context.Background(), &model.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}); err != nil {
		t.Fatalf("create message: %v", err)
	}
}

func TestSummarizeIncrementalFresh(t *testing.T) {
	client := &fakeLLM{completeText: "User is pricing a chatbot build for a dental clinic."}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "pricing", nil)
	f.addMessage(t, conv.ID, model.RoleUser, "How much should I charge?")
	f.addMessage(t, conv.ID, model.RoleAssistant, "Start from the value delivered.")

	if err := f.svc.SummarizeIncremental(context.Background(), 1, "pricing", conv.ID); err != nil {
		t.Fatalf("SummarizeIncremental: %v", err)
	}

	if !strings.HasPrefix(client.lastPrompt, "Summarize this conversation in 2-3 concise sentences.") {
		t.Errorf("fresh summary should use the first-time prompt: %q", client.lastPrompt)
	}
	// 转写按时间升序
	if !strings.Contains(client.lastPrompt, "user: How much should I charge?\nassistant: Start from the value delivered.") {
		t.Errorf("transcript missing or out of order: %q", client.lastPrompt)
	}

	mem, err := f.memoryRepo.Get(context.Background(), 1, "pricing")
	if err != nil {
		t.Fatalf("memory not stored: %v", err)
	}
	if mem.MemoryBlob != client.completeText {
		t.Errorf("memory blob = %q", mem.MemoryBlob)
	}
	got, _ := f.convRepo.FindByID(context.Background(), conv.ID)
	if got.Summary != client.completeText {
		t.Errorf("conversation summary = %q", got.Summary)
	}
}

func TestSummarizeIncrementalMergesExisting(t *testing.T) {
	client := &fakeLLM{completeText: "updated summary"}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "pricing", nil)
	_ = f.convRepo.UpdateSummary(context.Background(), conv.ID, "old summary")
	f.addMessage(t, conv.ID, model.RoleUser, "new question")

	if err := f.svc.SummarizeIncremental(context.Background(), 1, "pricing", conv.ID); err != nil {
		t.Fatalf("SummarizeIncremental: %v", err)
	}
	if !strings.Contains(client.lastPrompt, "Here is the existing summary of this conversation:") {
		t.Errorf("should use the merge prompt when a summary exists: %q", client.lastPrompt)
	}
	if !strings.Contains(client.lastPrompt, `"old summary"`) {
		t.Errorf("existing summary missing from prompt: %q", client.lastPrompt)
	}
}

func TestSummarizeIncrementalEmptyConversation(t *testing.T) {
	client := &fakeLLM{completeText: "whatever"}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "pricing", nil)

	if err := f.svc.SummarizeIncremental(context.Background(), 1, "pricing", conv.ID); err != nil {
		t.Fatalf("SummarizeIncremental: %v", err)
	}
	if client.completeCalls != 0 {
		t.Errorf("no model call expected for an empty conversation, got %d", client.completeCalls)
	}
}

func TestSummarizeFull(t *testing.T) {
	client := &fakeLLM{completeText: "full summary"}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "sales", nil)
	long := strings.Repeat("a", 600)
	f.addMessage(t, conv.ID, model.RoleUser, long)
	f.addMessage(t, conv.ID, model.RoleAssistant, "short reply")

	if err := f.svc.SummarizeFull(context.Background(), 1, "sales", conv.ID); err != nil {
		t.Fatalf("SummarizeFull: %v", err)
	}

	if !strings.HasPrefix(client.lastPrompt, "Summarize the key facts and context from this conversation in 2-3 sentences.") {
		t.Errorf("one-shot prompt wrong: %q", client.lastPrompt)
	}
	// 单条消息截断到 500 字符
	if strings.Contains(client.lastPrompt, long) {
		t.Error("long message should be truncated in the transcript")
	}
	if !strings.Contains(client.lastPrompt, "user: "+strings.Repeat("a", 500)) {
		t.Errorf("truncated message missing: %q", client.lastPrompt)
	}

	mem, err := f.memoryRepo.Get(context.Background(), 1, "sales")
	if err != nil || mem.MemoryBlob != "full summary" {
		t.Errorf("memory = %v, %v", mem, err)
	}
}

func TestSummarizeFullTooShort(t *testing.T) {
	client := &fakeLLM{completeText: "whatever"}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "sales", nil)
	f.addMessage(t, conv.ID, model.RoleUser, "only one message")

	if err := f.svc.SummarizeFull(context.Background(), 1, "sales", conv.ID); err != nil {
		t.Fatalf("SummarizeFull: %v", err)
	}
	if client.completeCalls != 0 {
		t.Errorf("conversations under one full turn are not summarized, got %d calls", client.completeCalls)
	}
}

func TestSummarizeStoresNothingOnBlankOutput(t *testing.T) {
	client := &fakeLLM{completeText: "  \n"}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "sales", nil)
	f.addMessage(t, conv.ID, model.RoleUser, "q")
	f.addMessage(t, conv.ID, model.RoleAssistant, "a")

	if err := f.svc.SummarizeIncremental(context.Background(), 1, "sales", conv.ID); err != nil {
		t.Fatalf("SummarizeIncremental: %v", err)
	}
	if _, err := f.memoryRepo.Get(context.Background(), 1, "sales"); err == nil {
		t.Error("blank model output must not be stored as memory")
	}
	got, _ := f.convRepo.FindByID(context.Background(), conv.ID)
	if got.Summary != "" {
		t.Errorf("conversation summary should stay empty, got %q", got.Summary)
	}
}

func TestSummarizeErrorPropagates(t *testing.T) {
	client := &fakeLLM{completeErr: errTestBackend}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "sales", nil)
	f.addMessage(t, conv.ID, model.RoleUser, "q")

	if err := f.svc.SummarizeIncremental(context.Background(), 1, "sales", conv.ID); err == nil {
		t.Fatal("expected error when the summary model fails")
	}
}

func TestGenerateTitle(t *testing.T) {
	client := &fakeLLM{completeText: "\"Chatbot Pricing Help\"\n"}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "pricing", nil)

	if err := f.svc.GenerateTitle(context.Background(), conv.ID, "How much for a chatbot?", "It depends on scope."); err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}

	if client.lastMaxTokens != 30 {
		t.Errorf("title call maxTokens = %d, want 30", client.lastMaxTokens)
	}
	if !strings.Contains(client.lastPrompt, "Generate a very short title (max 5 words)") {
		t.Errorf("title prompt = %q", client.lastPrompt)
	}
	got, _ := f.convRepo.FindByID(context.Background(), conv.ID)
	if got.Title != "Chatbot Pricing Help" {
		t.Errorf("title = %q, surrounding quotes should be stripped", got.Title)
	}
}

func TestGenerateTitleBlankOutput(t *testing.T) {
	client := &fakeLLM{completeText: `""`}
	f := newMemoryFixture(client)
	conv, _ := f.convRepo.Create(context.Background(), 1, "pricing", nil)

	if err := f.svc.GenerateTitle(context.Background(), conv.ID, "q", "a"); err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	got, _ := f.convRepo.FindByID(context.Background(), conv.ID)
	if got.Title != "" {
		t.Errorf("blank title should not overwrite, got %q", got.Title)
	}
}
