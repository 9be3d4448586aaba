// Package main provides the voiceloop CLI.
//
// Usage:
//
//	voiceloop [flags] <command> [args]
//
// Commands:
//
//	serve     - serve the voice loop HTTP API
//	process   - run one audio file through the pipeline
//	sessions  - list and inspect stored sessions
//	config    - show the effective configuration
//
// Configuration is read from ~/.voiceloop/config.yaml.
package main

import (
	"fmt"
	"os"

	"github.com/almosthuman-ai/voiceloop/cmd/voiceloop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
