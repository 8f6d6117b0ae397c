// Package kafka 提供了与 Kafka 消息队列交互的功能。
// 聊天完成后的后台任务（标题生成、记忆摘要、活跃时间更新）
// 经由这里投递与消费。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"hexona-gpts-go/internal/config"
	"hexona-gpts-go/pkg/log"
	"hexona-gpts-go/pkg/tasks"

	"github.com/segmentio/kafka-go"
)

// Producer 是 tasks.Queue 的 Kafka 实现。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: writer}
}

// Enqueue 发送一个后台任务到 Kafka。
func (p *Producer) Enqueue(task tasks.ChatTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(task.ConversationID),
			Value: taskBytes,
		},
	)
}

// StartConsumer 启动一个 Kafka 消费者来处理后台任务。
// 任务失败只记录日志，不重新投递；丢失摘要或标题只降低体验，不影响正确性。
func StartConsumer(cfg config.KafkaConfig, processor tasks.Processor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "hexona-gpts-worker",
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.ReadMessage(context.Background())
		if err != nil {
			log.Errorf("读取 Kafka 消息失败: %v", err)
			time.Sleep(time.Second)
			continue
		}

		var task tasks.ChatTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("解析后台任务失败: %v", err)
			continue
		}

		log.Infof("收到后台任务: kind=%s, conversation=%s", task.Kind, task.ConversationID)
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("后台任务 %s 执行失败: %v", task.Kind, err)
		}
	}
}
