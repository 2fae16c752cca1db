package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"TaskAgent/backend/go/internal/config"

	"github.com/go-redis/redis/v8"
)

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// GetClient 使用单例模式初始化并返回一个 Redis 客户端实例。
// 它确保到 Redis 的连接在整个应用生命周期中只被建立一次。
func GetClient(cfg *config.RedisConfig) (*redis.Client, error) {
	once.Do(func() {
		// 使用配置创建 Redis 客户端。
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		// 使用 Ping 检查连接是否成功。
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("无法连接到 Redis: %w", err)
			return
		}

		log.Println("✅ 成功连接到 Redis!")
		client = rdb
	})

	return client, initErr
}

// Close 安全地关闭单例的 Redis 连接。
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck 检查 Redis 连接的健康状况。
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("Redis 客户端未初始化")
	}
	return client.Ping(ctx).Err()
}

// Store 是同意标志和心跳使用的简单键值访问。
type Store struct {
	rdb *redis.Client
}

// NewStore 基于已连接的客户端创建 Store。
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Get 读取一个键，键不存在时 found 为 false 且 err 为 nil。
func (s *Store) Get(ctx context.Context, key string) (value string, found bool, err error) {
	value, err = s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取 Redis 键 '%s' 失败: %w", key, err)
	}
	return value, true, nil
}

// Set 写入一个带过期时间的键，ttl 为 0 表示永不过期。
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("写入 Redis 键 '%s' 失败: %w", key, err)
	}
	return nil
}
