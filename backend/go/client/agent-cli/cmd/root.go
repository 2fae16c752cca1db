package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "agent-cli",
	Short: "A CLI client for the task agent",
	Long:  `A command-line interface for submitting tasks to a task agent, either synchronously over HTTP or as rows in the task source.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "agent base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("TASK_AGENT_TOKEN"), "bearer token for the submit API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
}
