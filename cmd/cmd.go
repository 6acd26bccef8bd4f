// Package cmd provides CLI commands for converse.
//
// Commands:
//   - serve: HTTP API server with SSE streaming chat
//   - version: build and configuration information
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"os"
)

// Execute is the main entry point for the converse CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("converse - conversational assistant backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  converse serve [addr] Start HTTP API server (default: :8080)")
	fmt.Println("  converse version      Show version information")
	fmt.Println("  converse help         Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  GEMINI_API_KEY          Google AI API key (required for serve)")
	fmt.Println("  CONVERSE_DATABASE_URL   Postgres connection string")
}
