package kafka

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"

	"TaskAgent/backend/go/internal/config"

	"github.com/segmentio/kafka-go"
)

// KafkaClient 持有管理连接和配置，供审计日志发布使用。
type KafkaClient struct {
	Conn   *kafka.Conn // 用于管理的连接
	Config *config.KafkaConfig
}

var (
	client  *KafkaClient
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 KafkaClient 实例。
// 首次调用时，它会连接到 Kafka 并在审计主题不存在时创建它。
func GetClient(cfg *config.KafkaConfig) (*KafkaClient, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("未配置 Kafka brokers")
			return
		}
		if cfg.JournalTopic == "" {
			initErr = fmt.Errorf("未配置 Kafka 审计主题")
			return
		}

		// 1. 建立管理连接
		conn, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("kafka 初始化连接失败: %w", err)
			return
		}

		// 2. 获取已存在的主题
		partitions, err := conn.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("无法读取 Kafka 分区信息: %w", err)
			conn.Close()
			return
		}
		exists := false
		for _, p := range partitions {
			if p.Topic == cfg.JournalTopic {
				exists = true
				break
			}
		}

		// 3. 创建不存在的主题
		if !exists {
			log.Printf("主题 '%s' 不存在，准备创建...", cfg.JournalTopic)
			err = conn.CreateTopics(kafka.TopicConfig{
				Topic:             cfg.JournalTopic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			})
			if err != nil {
				initErr = fmt.Errorf("自动创建 Kafka 主题失败: %w", err)
				conn.Close()
				return
			}
		}

		log.Println("✅ 成功初始化 Kafka 客户端!")
		client = &KafkaClient{Conn: conn, Config: cfg}
	})

	return client, initErr
}

// Close 安全地关闭 Kafka 管理连接。
func (c *KafkaClient) Close() error {
	if c == nil || c.Conn == nil {
		return nil
	}
	if err := c.Conn.Close(); err != nil {
		return fmt.Errorf("关闭 Kafka 管理连接失败: %w", err)
	}
	return nil
}

// HealthCheck 检查 Kafka 连接的健康状况。
func (c *KafkaClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka 客户端未初始化，无法进行健康检查")
	}
	_, err := c.Conn.Controller()
	return err
}

// GetControllerInfo 返回 Kafka 控制器的信息。
func (c *KafkaClient) GetControllerInfo() (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("kafka 客户端未初始化")
	}
	controller, err := c.Conn.Controller()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)), nil
}
