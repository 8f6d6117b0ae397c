// Package worker 执行聊天完成后派生的后台任务。
package worker

import (
	"context"
	"fmt"

	"hexona-gpts-go/internal/repository"
	"hexona-gpts-go/internal/service"
	"hexona-gpts-go/pkg/tasks"
)

// Processor 把任务类型分发到对应的业务实现。
type Processor struct {
	memoryService service.MemoryService
	userRepo      repository.UserRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(memoryService service.MemoryService, userRepo repository.UserRepository) *Processor {
	return &Processor{
		memoryService: memoryService,
		userRepo:      userRepo,
	}
}

// Process 执行单个后台任务。
func (p *Processor) Process(ctx context.Context, task tasks.ChatTask) error {
	switch task.Kind {
	case tasks.KindGenerateTitle:
		return p.memoryService.GenerateTitle(ctx, task.ConversationID, task.UserMessage, task.AssistantReply)
	case tasks.KindSummarizeMemory:
		return p.memoryService.SummarizeIncremental(ctx, task.UserID, task.GptSlug, task.ConversationID)
	case tasks.KindTouchLastActive:
		return p.userRepo.TouchLastActive(task.UserID)
	default:
		return fmt.Errorf("unknown task kind: %s", task.Kind)
	}
}
