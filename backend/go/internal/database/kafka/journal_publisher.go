package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// JournalPublisher 将每条执行记录发送到 Kafka 审计主题。
// writer 为异步模式，写入失败只记录日志，不阻塞执行器。
type JournalPublisher struct {
	writer *kafka.Writer
}

// NewJournalPublisher 创建一个新的 JournalPublisher 实例。
func NewJournalPublisher(client *KafkaClient, log *logger.Logger) *JournalPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(client.Config.Brokers...),
		Topic:        client.Config.JournalTopic,
		Balancer:     &kafka.Hash{}, // 同一任务的记录落在同一分区
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.WithError(models.ErrorInfo{Message: err.Error()}).WithPayload(map[string]interface{}{
					"messages": len(messages),
				}).Warn("Failed to publish journal entries to kafka")
			}
		},
	}
	return &JournalPublisher{writer: writer}
}

// Append 将 JournalEntry 序列化为 JSON 并发送到 Kafka。
func (p *JournalPublisher) Append(ctx context.Context, entry models.JournalEntry) error {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(entry.TaskID),
		Value: jsonData,
		Time:  entry.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 刷新缓冲并关闭底层的 writer 连接。
func (p *JournalPublisher) Close() error {
	return p.writer.Close()
}
