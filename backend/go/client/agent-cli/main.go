package main

import "TaskAgent/backend/go/client/agent-cli/cmd"

func main() {
	cmd.Execute()
}
