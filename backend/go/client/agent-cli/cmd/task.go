package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"TaskAgent/backend/go/internal/agent"
	"TaskAgent/backend/go/internal/config"
	taskhttp "TaskAgent/backend/go/pkg/http"

	"github.com/spf13/cobra"
)

var (
	taskID      string
	taskAction  string
	taskPayload string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Run tasks synchronously on the agent",
}

var submitCmd = &cobra.Command{
	Use:   "submit [legacy command]",
	Short: "Submit a task and wait for its result",
	Example: `  agent-cli task submit --action tap --payload '{"x":100,"y":200}'
  agent-cli task submit "ls /storage/emulated/0/Download"`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(taskID, taskAction, taskPayload, args)
		if err != nil {
			return err
		}
		var out map[string]interface{}
		if err := postJSON(cmd, "/api/v1/tasks", req, &out); err != nil {
			return err
		}
		if err := printJSON(out); err != nil {
			return err
		}
		if out["success"] != true {
			os.Exit(2)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show agent identity, capabilities and queue state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		var out map[string]interface{}
		status, err := client.GetJSON(cmd.Context(), strings.TrimRight(serverURL, "/")+"/api/v1/healthz", token, &out)
		if err != nil {
			return err
		}
		if status != 200 {
			return fmt.Errorf("health check failed with status %d", status)
		}
		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(submitCmd, healthCmd)
	submitCmd.Flags().StringVar(&taskID, "id", "", "task id (generated by the agent when empty)")
	submitCmd.Flags().StringVar(&taskAction, "action", "", "task kind or alias, e.g. tap, click_text, rm")
	submitCmd.Flags().StringVar(&taskPayload, "payload", "", "JSON object with the task arguments")
}

// buildRequest accepts either --action with an optional JSON payload, or a
// legacy free-text command as positional arguments.
func buildRequest(id, action, payload string, args []string) (agent.SubmitRequest, error) {
	req := agent.SubmitRequest{ID: id, Action: action}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
			return req, fmt.Errorf("--payload must be a JSON object: %w", err)
		}
	}
	if len(args) > 0 {
		req.Command = strings.Join(args, " ")
	}
	if req.Action == "" && req.Command == "" {
		return req, fmt.Errorf("either --action or a command is required")
	}
	return req, nil
}

func newClient() (*taskhttp.Client, error) {
	return taskhttp.NewClient(config.CircuitBreakerConfig{}, timeout)
}

func postJSON(cmd *cobra.Command, path string, body, out interface{}) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	status, err := client.PostJSON(cmd.Context(), strings.TrimRight(serverURL, "/")+path, token, body, out)
	if err != nil {
		return err
	}
	switch status {
	case 200:
		return nil
	case 401, 403:
		return fmt.Errorf("request rejected (status %d), check --token", status)
	default:
		return fmt.Errorf("request failed with status %d", status)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
