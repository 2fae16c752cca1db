package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TaskAgent/backend/go/internal/agent"
	"TaskAgent/backend/go/internal/agent/api"
	"TaskAgent/backend/go/internal/capability/sim"
	"TaskAgent/backend/go/internal/capability/storage"
	"TaskAgent/backend/go/internal/config"
	"TaskAgent/backend/go/internal/consent"
	"TaskAgent/backend/go/internal/database/kafka"
	"TaskAgent/backend/go/internal/database/mongo"
	"TaskAgent/backend/go/internal/database/redis"
	"TaskAgent/backend/go/internal/executor"
	"TaskAgent/backend/go/internal/heartbeat"
	"TaskAgent/backend/go/internal/journal"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/poller"
	"TaskAgent/backend/go/internal/reporter"
	"TaskAgent/backend/go/internal/store"
	"TaskAgent/backend/go/internal/task"
	"TaskAgent/backend/go/pkg/circuitbreaker"
	"TaskAgent/backend/go/pkg/clock"
	taskhttp "TaskAgent/backend/go/pkg/http"
	"TaskAgent/backend/go/pkg/logger"
	"TaskAgent/backend/go/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
)

const defaultConfigPath = "backend/go/internal/config/config.yaml"

func main() {
	path := os.Getenv("TASK_AGENT_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("task_agent", "", cfg.Agent.SourceID)

	// 存储沙箱与设备能力
	sandbox, err := storage.NewSandbox(cfg.Agent.StorageRoot, cfg.Agent.HostRoot)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to open storage root")
	}
	device := sim.NewDevice(nil)
	if cfg.Agent.ScreenFixture != "" {
		if device, err = sim.LoadFixture(cfg.Agent.ScreenFixture); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to load screen fixture")
		}
	}

	// 审计日志
	var sink journal.Journal = journal.Discard{}
	var publisher *kafka.JournalPublisher
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		kc, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Kafka")
		}
		defer kc.Close()
		publisher = kafka.NewJournalPublisher(kc, serviceLogger)
		sink = publisher
	} else {
		serviceLogger.Warn("No Kafka brokers configured, journal entries are only logged")
	}

	// 同意标志与心跳
	var checker consent.Checker
	var kv *redis.Store
	if cfg.Databases.Redis.Address != "" {
		rdb, err := redis.GetClient(&cfg.Databases.Redis)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		kv = redis.NewStore(rdb)
	}
	switch cfg.Agent.ConsentMode {
	case "static":
		checker = consent.NewStatic(cfg.Agent.SourceID)
		serviceLogger.Warn("Static consent mode: every task from this source is allowed")
	default:
		if kv == nil {
			serviceLogger.Fatal("Redis consent mode requires databases.redis.address")
		}
		checker = consent.NewKV(kv)
	}

	// 任务来源
	var taskStore store.TaskStore = store.NewMemoryStore()
	if cfg.Databases.MongoDB.Address != "" {
		mc, err := mongo.GetClient(&cfg.Databases.MongoDB)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
		}
		defer mongo.Close(context.Background())
		ictx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		coll, err := mongo.TaskCollection(ictx, mc, &cfg.Databases.MongoDB)
		cancel()
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to prepare task collection")
		}
		taskStore = store.NewMongoTaskStore(coll)
	}

	// 流水线
	limiter := ratelimiter.NewKeyedSlidingWindow(cfg.TaskRate.Limit, config.Duration(cfg.TaskRate.Window, time.Minute), clock.Real{})
	parser := task.NewParser(task.Limits{
		MaxIDLength:     cfg.Limits.MaxIDLength,
		MaxPayloadKeys:  cfg.Limits.MaxPayloadKeys,
		MaxDepth:        cfg.Limits.MaxDepth,
		MaxStringLength: cfg.Limits.MaxStringLength,
		MaxListLength:   cfg.Limits.MaxListLength,
	}, limiter)
	exec := executor.New(executor.Capabilities{
		UI:       device,
		Gestures: device,
		Apps:     device,
		Files:    storage.NewLocal(sandbox),
		Sandbox:  sandbox,
	}, executor.Options{
		QueueSize:      cfg.Executor.QueueSize,
		AdapterTimeout: config.Duration(cfg.Executor.AdapterTimeout, 15*time.Second),
		MaxWait:        config.Duration(cfg.Executor.MaxWait, task.MaxWait),
		Logger:         serviceLogger,
		Journal:        sink,
		Consent:        checker,
	})
	correlator := reporter.NewCorrelator(config.Duration(cfg.Reporter.CallerTimeout, reporter.DefaultCallerTimeout))
	rep := reporter.New(correlator, taskStore, reporter.Options{
		SourceID:      cfg.Agent.SourceID,
		ReportTimeout: config.Duration(cfg.Reporter.ReportTimeout, 5*time.Second),
		Logger:        serviceLogger,
		Journal:       sink,
	})

	var poll *poller.Poller
	if cfg.Poll.Enabled {
		opts := poller.Options{
			SourceID:     cfg.Agent.SourceID,
			Interval:     config.Duration(cfg.Poll.Interval, 5*time.Second),
			BatchSize:    cfg.Poll.BatchSize,
			FetchTimeout: config.Duration(cfg.Poll.FetchTimeout, 5*time.Second),
			Logger:       serviceLogger,
		}
		if cb := cfg.Middleware.CircuitBreaker; cb.Enabled {
			opts.Breaker = circuitbreaker.New(cb.FailureThreshold, cb.SuccessThreshold, config.Duration(cb.Timeout, 30*time.Second))
		}
		poll = poller.New(taskStore, parser, checker, exec, rep, opts)
	}

	var beacon *heartbeat.Beacon
	if cfg.Heartbeat.Enabled && kv != nil {
		beacon = heartbeat.NewBeacon(cfg.Agent.SourceID, config.Duration(cfg.Heartbeat.Interval, 30*time.Second), kv, exec.QueueDepth, serviceLogger)
	}

	handle, err := agent.New(agent.Deps{
		SourceID:   cfg.Agent.SourceID,
		Version:    cfg.App.Version,
		Parser:     parser,
		Executor:   exec,
		Correlator: correlator,
		Reporter:   rep,
		Consent:    checker,
		Poller:     poll,
		Beacon:     beacon,
		Capabilities: map[string]bool{
			"ui":       true,
			"gestures": true,
			"apps":     true,
			"files":    true,
		},
		Logger: serviceLogger,
	})
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to build agent")
	}
	ctx, cancel := context.WithCancel(context.Background())
	handle.Start(ctx)

	var srv *taskhttp.Server
	if cfg.Server.Enabled {
		gin.SetMode(gin.ReleaseMode)
		srv, err = taskhttp.NewServer(cfg, taskhttp.WithLogger(serviceLogger))
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create HTTP server")
		}
		if cfg.Auth.JwtSecret == "" {
			serviceLogger.WithPayload(map[string]interface{}{"address": srv.Addr()}).Warn("auth.jwtSecret is empty, the task API accepts unauthenticated requests on loopback")
		}
		srv.Handle("/", api.NewRouter(api.NewAPI(handle, serviceLogger), cfg.Auth.JwtSecret))
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed")
			}
		}()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down agent...")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Server forced to shutdown")
		}
		shutdownCancel()
	}
	cancel()
	handle.Stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka journal publisher")
		}
	}
	serviceLogger.Info("Agent gracefully stopped")
}
