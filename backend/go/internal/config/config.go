package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`    // MongoDB 服务器地址
	Username   string `yaml:"username"`   // 用户名
	Password   string `yaml:"password"`   // 密码
	Database   string `yaml:"database"`   // 数据库名称
	Collection string `yaml:"collection"` // 任务行所在的集合
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`      // Kafka Broker 地址列表
	JournalTopic string   `yaml:"journalTopic"` // 执行审计日志主题
}

// DatabaseConfigs 包含所有外部存储的配置。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`   // 同意标志与心跳
	MongoDB MongoConfig `yaml:"mongodb"` // 任务来源
	Kafka   KafkaConfig `yaml:"kafka"`   // 审计日志
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// AgentConfig 描述代理自身的身份和存储根目录。
type AgentConfig struct {
	SourceID      string `yaml:"sourceID"`      // 代理身份，只接受该来源的任务
	StorageRoot   string `yaml:"storageRoot"`   // 任务中可见的逻辑根路径
	HostRoot      string `yaml:"hostRoot"`      // 逻辑根路径映射到的宿主目录
	ScreenFixture string `yaml:"screenFixture"` // 模拟设备的界面树 YAML 文件
	ConsentMode   string `yaml:"consentMode"`   // "redis" 或 "static"
}

// LimitsConfig 约束任务描述符的大小。
type LimitsConfig struct {
	MaxIDLength     int `yaml:"maxIDLength"`
	MaxPayloadKeys  int `yaml:"maxPayloadKeys"`
	MaxDepth        int `yaml:"maxDepth"`
	MaxStringLength int `yaml:"maxStringLength"`
	MaxListLength   int `yaml:"maxListLength"`
}

// TaskRateConfig 定义了按 (来源, 种类) 计数的滑动窗口。
type TaskRateConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "60s"
}

// ExecutorConfig 定义了单工作线程执行器的参数。
type ExecutorConfig struct {
	QueueSize      int    `yaml:"queueSize"`
	AdapterTimeout string `yaml:"adapterTimeout"`
	MaxWait        string `yaml:"maxWait"`
}

// ReporterConfig 定义了同步调用方等待结果的超时。
type ReporterConfig struct {
	CallerTimeout string `yaml:"callerTimeout"`
	ReportTimeout string `yaml:"reportTimeout"`
}

// PollConfig 定义了轮询循环。
type PollConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Interval     string `yaml:"interval"`
	BatchSize    int    `yaml:"batchSize"`
	FetchTimeout string `yaml:"fetchTimeout"`
}

// HeartbeatConfig 定义了心跳间隔。
type HeartbeatConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// AuthConfig 用于配置同步提交接口的认证。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // 为空时不校验
}

// ServerConfig 定义了 HTTP 提交接口。
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Agent      AgentConfig      `yaml:"agent"`
	Auth       AuthConfig       `yaml:"auth"`
	Logger     LoggerConfig     `yaml:"logger"`
	Limits     LimitsConfig     `yaml:"limits"`
	TaskRate   TaskRateConfig   `yaml:"taskRate"`
	Executor   ExecutorConfig   `yaml:"executor"`
	Reporter   ReporterConfig   `yaml:"reporter"`
	Poll       PollConfig       `yaml:"poll"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Server     ServerConfig     `yaml:"server"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了 HTTP 层的限流器配置。
type RateLimiterConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Algorithm   string            `yaml:"algorithm"` // 支持: "slidingLog", "tokenBucket"
	SlidingLog  SlidingLogConfig  `yaml:"slidingLog"`
	TokenBucket TokenBucketConfig `yaml:"tokenBucket"`
}

// SlidingLogConfig 定义了滑动窗口日志算法的配置。
type SlidingLogConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// Defaults 返回一份可以直接运行的配置，LoadConfig 在其基础上覆盖文件中的值。
func Defaults() *AppConfig {
	return &AppConfig{
		App:    AppInfo{Name: "task_agent", Version: "dev", Environment: "development"},
		Agent:  AgentConfig{StorageRoot: "/storage/emulated/0", HostRoot: "./data", ConsentMode: "redis"},
		Logger: LoggerConfig{Level: "info"},
		Limits: LimitsConfig{
			MaxIDLength:     128,
			MaxPayloadKeys:  32,
			MaxDepth:        4,
			MaxStringLength: 1024,
			MaxListLength:   64,
		},
		TaskRate:  TaskRateConfig{Limit: 30, Window: "60s"},
		Executor:  ExecutorConfig{QueueSize: 64, AdapterTimeout: "15s", MaxWait: "120s"},
		Reporter:  ReporterConfig{CallerTimeout: "10s", ReportTimeout: "5s"},
		Poll:      PollConfig{Enabled: true, Interval: "5s", BatchSize: 10, FetchTimeout: "5s"},
		Heartbeat: HeartbeatConfig{Enabled: true, Interval: "30s"},
		Server:    ServerConfig{Enabled: true, Address: "127.0.0.1:8080"},
		Databases: DatabaseConfigs{
			MongoDB: MongoConfig{Database: "task_agent", Collection: "tasks"},
			Kafka:   KafkaConfig{JournalTopic: "agent_task_journal"},
		},
		Middleware: MiddlewareConfig{
			RateLimiter: RateLimiterConfig{
				Algorithm:   "tokenBucket",
				TokenBucket: TokenBucketConfig{Rate: 5, Capacity: 10},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          "30s",
			},
		},
	}
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体，未出现的字段保留 Defaults 中的值。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查必填字段和所有时长字符串。
func (c *AppConfig) Validate() error {
	if c.Agent.SourceID == "" {
		return fmt.Errorf("agent.sourceID 不能为空")
	}
	if c.Agent.StorageRoot == "" || c.Agent.HostRoot == "" {
		return fmt.Errorf("agent.storageRoot 和 agent.hostRoot 不能为空")
	}
	if c.Server.Enabled && c.Auth.JwtSecret == "" && !Loopback(c.Server.Address) {
		return fmt.Errorf("server.address %q 不是回环地址，必须配置 auth.jwtSecret", c.Server.Address)
	}
	if c.TaskRate.Limit <= 0 {
		return fmt.Errorf("taskRate.limit 必须为正数")
	}
	durations := map[string]string{
		"taskRate.window":                   c.TaskRate.Window,
		"executor.adapterTimeout":           c.Executor.AdapterTimeout,
		"executor.maxWait":                  c.Executor.MaxWait,
		"reporter.callerTimeout":            c.Reporter.CallerTimeout,
		"reporter.reportTimeout":            c.Reporter.ReportTimeout,
		"poll.interval":                     c.Poll.Interval,
		"poll.fetchTimeout":                 c.Poll.FetchTimeout,
		"heartbeat.interval":                c.Heartbeat.Interval,
		"middleware.circuitBreaker.timeout": c.Middleware.CircuitBreaker.Timeout,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("无效的时长 %s=%q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("时长 %s 必须为正数", name)
		}
	}
	return nil
}

// Loopback 报告监听地址是否只绑定在本机回环接口上。空主机名 (":8080") 表示所有接口。
func Loopback(address string) bool {
	host, _, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Duration 解析一个已经通过 Validate 的时长字符串，解析失败时返回 fallback。
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
