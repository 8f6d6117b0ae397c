package service

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/internal/model"
	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/pkg/llm"
	"hexona-gpts-go/pkg/tasks"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errTestBackend = errors.New("backend unavailable")

// 测试不走配置文件，直接套用产品默认参数。
func TestMain(m *testing.M) {
	config.ApplyChatDefaults(&config.Conf.Chat)
	os.Exit(m.Run())
}

// 内存版仓库实现，按接口语义模拟数据库行为。

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: map[string]*model.Conversation{}}
}

func (r *fakeConversationRepo) Create(_ context.Context, userID uint, gptSlug string, clientID *string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		GptSlug:   gptSlug,
		ClientID:  clientID,
		UpdatedAt: time.Now(),
	}
	r.conversations[conv.ID] = conv
	return conv, nil
}

func (r *fakeConversationRepo) FindByID(_ context.Context, id string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *conv
	return &copied, nil
}

func (r *fakeConversationRepo) FindByIDForUser(ctx context.Context, id string, userID uint) (*model.Conversation, error) {
	conv, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return conv, nil
}

func (r *fakeConversationRepo) ListByUser(_ context.Context, userID uint, gptSlug, clientID string, limit int) ([]model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Conversation
	for _, c := range r.conversations {
		if c.UserID != userID {
			continue
		}
		if gptSlug != "" && c.GptSlug != gptSlug {
			continue
		}
		if clientID != "" && (c.ClientID == nil || *c.ClientID != clientID) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeConversationRepo) FindSiblings(_ context.Context, userID uint, clientID, excludeSlug string, limit int) ([]model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Conversation
	for _, c := range r.conversations {
		if c.UserID != userID || c.ClientID == nil || *c.ClientID != clientID || c.GptSlug == excludeSlug {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeConversationRepo) UpdateTitle(_ context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conv.Title = title
	return nil
}

func (r *fakeConversationRepo) UpdateSummary(_ context.Context, id, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conv.Summary = summary
	return nil
}

func (r *fakeConversationRepo) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv, ok := r.conversations[id]; ok {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeConversationRepo) Delete(_ context.Context, id string, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok || conv.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(r.conversations, id)
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   uint64
	messages map[string][]model.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string][]model.Message{}}
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], *msg)
	return nil
}

func (r *fakeMessageRepo) FindRecent(_ context.Context, conversationID string, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[conversationID]
	var out []model.Message
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

func (r *fakeMessageRepo) FindOldest(_ context.Context, conversationID string, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (r *fakeMessageRepo) CountByConversation(_ context.Context, conversationID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.messages[conversationID])), nil
}

func (r *fakeMessageRepo) CountByConversations(_ context.Context, ids []string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, id := range ids {
		out[id] = int64(len(r.messages[id]))
	}
	return out, nil
}

func (r *fakeMessageRepo) ListByConversation(_ context.Context, conversationID string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[conversationID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type memoryKey struct {
	userID  uint
	gptSlug string
}

type fakeMemoryRepo struct {
	mu      sync.Mutex
	entries map[memoryKey]string
}

func newFakeMemoryRepo() *fakeMemoryRepo {
	return &fakeMemoryRepo{entries: map[memoryKey]string{}}
}

func (r *fakeMemoryRepo) Get(_ context.Context, userID uint, gptSlug string) (*model.GptMemory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blob, ok := r.entries[memoryKey{userID, gptSlug}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.GptMemory{UserID: userID, GptSlug: gptSlug, MemoryBlob: blob}, nil
}

func (r *fakeMemoryRepo) Upsert(_ context.Context, userID uint, gptSlug, blob string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[memoryKey{userID, gptSlug}] = blob
	return nil
}

type fakeGptConfigRepo struct {
	mu      sync.Mutex
	configs map[string]model.GptConfig
}

func newFakeGptConfigRepo() *fakeGptConfigRepo {
	return &fakeGptConfigRepo{configs: map[string]model.GptConfig{}}
}

func (r *fakeGptConfigRepo) GetBySlug(_ context.Context, gptSlug string) (*model.GptConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[gptSlug]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &cfg, nil
}

func (r *fakeGptConfigRepo) List(_ context.Context) ([]model.GptConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.GptConfig
	for _, cfg := range r.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func (r *fakeGptConfigRepo) Upsert(_ context.Context, cfg *model.GptConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.GptSlug] = *cfg
	return nil
}

type fakeUsageRepo struct {
	mu      sync.Mutex
	entries []model.UsageLog
}

func newFakeUsageRepo() *fakeUsageRepo { return &fakeUsageRepo{} }

func (r *fakeUsageRepo) Create(_ context.Context, entry *model.UsageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeUsageRepo) Totals(context.Context, time.Time) (int64, float64, error) {
	return 0, 0, nil
}

func (r *fakeUsageRepo) SummarizeByModel(context.Context, time.Time) ([]repository.UsageSummary, error) {
	return nil, nil
}

func (r *fakeUsageRepo) SummarizeByUser(context.Context, uint, time.Time) ([]repository.UsageSummary, error) {
	return nil, nil
}

func (r *fakeUsageRepo) SummarizeByDay(context.Context, time.Time) ([]repository.DailyUsage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) GptPopularity(context.Context, time.Time) ([]repository.GptUsage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) TopUsers(context.Context, time.Time, int) ([]repository.UserUsage, error) {
	return nil, nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[uint]*model.AgencyProfile
	clients  map[string]*model.Client
	failAll  bool
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		profiles: map[uint]*model.AgencyProfile{},
		clients:  map[string]*model.Client{},
	}
}

func (r *fakeProfileRepo) GetAgencyProfile(_ context.Context, userID uint) (*model.AgencyProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errTestBackend
	}
	p, ok := r.profiles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProfileRepo) UpsertAgencyProfile(_ context.Context, profile *model.AgencyProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[profile.UserID] = profile
	return nil
}

func (r *fakeProfileRepo) GetClient(_ context.Context, userID uint, clientID string) (*model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errTestBackend
	}
	c, ok := r.clients[clientID]
	if !ok || c.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeProfileRepo) ListClients(_ context.Context, userID uint) ([]model.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Client
	for _, c := range r.clients {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeProfileRepo) CreateClient(_ context.Context, client *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	copied := *client
	r.clients[client.ID] = &copied
	return nil
}

func (r *fakeProfileRepo) UpdateClient(_ context.Context, client *model.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *client
	r.clients[client.ID] = &copied
	return nil
}

func (r *fakeProfileRepo) DeleteClient(_ context.Context, userID uint, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, clientID)
	return nil
}

// fakeKnowledgeService 返回预设的检索结果。
type fakeKnowledgeService struct {
	chunks []model.KnowledgeChunk
	err    error
}

func (f *fakeKnowledgeService) Retrieve(context.Context, string, string) ([]model.KnowledgeChunk, error) {
	return f.chunks, f.err
}

func (f *fakeKnowledgeService) IndexDocument(context.Context, string, string, string) (*model.KnowledgeDocument, error) {
	return nil, nil
}

func (f *fakeKnowledgeService) ListDocuments(context.Context, string) ([]model.KnowledgeDocument, error) {
	return nil, nil
}

func (f *fakeKnowledgeService) DeleteDocument(context.Context, string) error { return nil }

// fakeEmitter 记录事件序列，供断言事件契约。
type fakeEmitter struct {
	mu             sync.Mutex
	conversationID string
	contents       []string
	errorMessage   string
	done           bool
	events         []string
}

func (e *fakeEmitter) EmitConversationID(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conversationID = id
	e.events = append(e.events, "conversationId")
	return nil
}

func (e *fakeEmitter) EmitContent(token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contents = append(e.contents, token)
	e.events = append(e.events, "content")
	return nil
}

func (e *fakeEmitter) EmitError(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errorMessage = message
	e.events = append(e.events, "error")
	return nil
}

func (e *fakeEmitter) Done() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.done = true
	e.events = append(e.events, "done")
	return nil
}

func (e *fakeEmitter) answer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out string
	for _, c := range e.contents {
		out += c
	}
	return out
}

// fakeQueue 同步记录任务，不执行。
type fakeQueue struct {
	mu    sync.Mutex
	tasks []tasks.ChatTask
}

func (q *fakeQueue) Enqueue(task tasks.ChatTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) kinds() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []string
	for _, t := range q.tasks {
		out = append(out, t.Kind)
	}
	return out
}

// fakeLLM 是可编程的上游端点：按 tokens 逐块写出，或直接返回错误。
type fakeLLM struct {
	mu           sync.Mutex
	tokens       []string
	usage        llm.Usage
	streamErr    error
	completeText string
	completeErr  error

	streamCalls   int
	lastParams    llm.StreamParams
	completeCalls int
	lastPrompt    string
	lastMaxTokens int
}

func (f *fakeLLM) StreamChat(ctx context.Context, p llm.StreamParams, w llm.TokenWriter) (llm.Usage, error) {
	f.mu.Lock()
	f.streamCalls++
	f.lastParams = p
	f.mu.Unlock()
	if f.streamErr != nil {
		return f.usage, f.streamErr
	}
	for _, t := range f.tokens {
		if err := w.WriteToken(t); err != nil {
			return llm.Usage{}, err
		}
	}
	return f.usage, nil
}

func (f *fakeLLM) Complete(_ context.Context, _ string, prompt string, maxTokens int) (string, error) {
	f.mu.Lock()
	f.completeCalls++
	f.lastPrompt = prompt
	f.lastMaxTokens = maxTokens
	f.mu.Unlock()
	return f.completeText, f.completeErr
}

func newTestDispatcher(provider string, client llm.Client) *llm.Dispatcher {
	return llm.NewDispatcherWithTargets(map[string][]llm.Client{provider: {client}})
}
