package mongo

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"TaskAgent/backend/go/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 MongoDB 客户端实例。
// 它确保到 MongoDB 的连接在整个应用生命周期中只被建立一次。
func GetClient(cfg *config.MongoConfig) (*mongo.Client, error) {
	once.Do(func() {
		// 应用连接URI。
		clientOptions := options.Client().ApplyURI(cfg.Address)
		// 如果配置了用户名和密码，则设置认证信息。
		if cfg.Username != "" && cfg.Password != "" {
			clientOptions.SetAuth(options.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}

		// 创建一个带有超时功能的上下文。
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel() // 确保在函数退出时取消上下文。

		// 连接到 MongoDB。
		c, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			initErr = fmt.Errorf("无法连接到 MongoDB: %w", err)
			return
		}

		// 检查连接是否成功（Ping 数据库）。
		if err = c.Ping(ctx, nil); err != nil {
			initErr = fmt.Errorf("无法 Ping MongoDB: %w", err)
			return
		}

		log.Println("✅ 成功连接到 MongoDB!")
		client = c
	})

	return client, initErr
}

// TaskCollection 返回配置中任务行所在的集合，并确保查询待处理任务所需的索引存在。
func TaskCollection(ctx context.Context, c *mongo.Client, cfg *config.MongoConfig) (*mongo.Collection, error) {
	coll := c.Database(cfg.Database).Collection(cfg.Collection)
	// FetchPending 按 (source_id, status, created_at) 查询。
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("创建任务索引失败: %w", err)
	}
	return coll, nil
}

// Close 安全地断开单例的 MongoDB 客户端连接。
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck 检查 MongoDB 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("MongoDB 客户端未初始化")
	}
	return client.Ping(ctx, nil)
}
