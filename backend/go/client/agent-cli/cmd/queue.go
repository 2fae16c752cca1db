package cmd

import (
	"context"
	"fmt"
	"time"

	"TaskAgent/backend/go/internal/config"
	"TaskAgent/backend/go/internal/database/mongo"
	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var configPath string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Enqueue and inspect task rows picked up by the poll loop",
}

var queueAddCmd = &cobra.Command{
	Use:   "add [legacy command]",
	Short: "Insert a pending task row for the configured agent",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(taskID, taskAction, taskPayload, args)
		if err != nil {
			return err
		}
		cfg, ts, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		rec := &models.TaskRecord{
			ID:        req.ID,
			SourceID:  cfg.Agent.SourceID,
			Action:    req.Action,
			Command:   req.Command,
			Payload:   req.Payload,
			Status:    models.TaskStatusPending,
			CreatedAt: time.Now(),
		}
		if err := ts.Create(cmd.Context(), rec); err != nil {
			return fmt.Errorf("insert task row: %w", err)
		}
		fmt.Printf("Task queued: %s\n", rec.ID)
		fmt.Printf("To check its status, run: agent-cli queue get %s\n", rec.ID)
		return nil
	},
}

var queueGetCmd = &cobra.Command{
	Use:   "get [task-id]",
	Short: "Show a task row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ts, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		rec, err := ts.GetByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd, queueGetCmd)
	queueCmd.PersistentFlags().StringVar(&configPath, "config", "backend/go/internal/config/config.yaml", "agent config file")
	queueAddCmd.Flags().StringVar(&taskID, "id", "", "task id (random uuid when empty)")
	queueAddCmd.Flags().StringVar(&taskAction, "action", "", "task kind or alias")
	queueAddCmd.Flags().StringVar(&taskPayload, "payload", "", "JSON object with the task arguments")
}

func openStore(ctx context.Context) (*config.AppConfig, store.TaskStore, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Databases.MongoDB.Address == "" {
		return nil, nil, fmt.Errorf("databases.mongodb.address is not configured")
	}
	client, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	coll, err := mongo.TaskCollection(ctx, client, &cfg.Databases.MongoDB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store.NewMongoTaskStore(coll), nil
}
