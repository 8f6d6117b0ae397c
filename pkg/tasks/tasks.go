// Package tasks 定义了聊天完成后派生的后台任务及其队列抽象。
// 任务是 fire-and-forget 的：请求响应在任务执行前就已结束，
// 任务失败只记日志，不影响用户可见结果。
package tasks

import (
	"context"
	"sync"

	"hexona-gpts-go/pkg/log"
)

// 后台任务类型。
const (
	KindGenerateTitle   = "generate_title"
	KindSummarizeMemory = "summarize_memory"
	KindTouchLastActive = "touch_last_active"
)

// ChatTask 是一次聊天完成后派生的后台工作项。
type ChatTask struct {
	Kind           string `json:"kind"`
	UserID         uint   `json:"user_id"`
	GptSlug        string `json:"gpt_slug"`
	ConversationID string `json:"conversation_id"`
	UserMessage    string `json:"user_message,omitempty"`
	AssistantReply string `json:"assistant_reply,omitempty"`
}

// Queue 提交后台任务。实现可以是 Kafka 生产者，
// 也可以是进程内 goroutine 执行器。
type Queue interface {
	Enqueue(task ChatTask) error
}

// Processor 消费并执行单个后台任务。
type Processor interface {
	Process(ctx context.Context, task ChatTask) error
}

// InProcessQueue 在本进程内用 goroutine 执行任务，
// 用于未配置 Kafka 的部署和测试。
type InProcessQueue struct {
	proc Processor
	wg   sync.WaitGroup
}

// NewInProcessQueue 创建进程内任务队列。
func NewInProcessQueue(proc Processor) *InProcessQueue {
	return &InProcessQueue{proc: proc}
}

// Enqueue 在新 goroutine 中执行任务，立即返回。
func (q *InProcessQueue) Enqueue(task ChatTask) error {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.proc.Process(context.Background(), task); err != nil {
			log.Errorf("后台任务 %s 执行失败: %v", task.Kind, err)
		}
	}()
	return nil
}

// Wait 阻塞直到所有已提交的任务完成。测试与优雅停机使用。
func (q *InProcessQueue) Wait() {
	q.wg.Wait()
}
