package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7433"
	pidFile    = "teachaid.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "doctor":
		err = cmdDoctor()
	case "config":
		err = cmdConfig()
	case "provider":
		err = cmdProvider(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("teachai %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`TeachAI - E-Learning Assistant for Python Lessons

Usage:
  teachai <command> [arguments]

Setup Commands:
  init            Initialize TeachAI (first-time setup)
  doctor          Check system requirements
  config          Show current configuration
  provider        Manage LLM providers

Daemon Commands:
  start           Start the TeachAI daemon
  stop            Stop the TeachAI daemon
  status          Show daemon status
  logs            View daemon logs

Analytics Commands:
  stats           Show lesson completion overview
  stats cell      Show attempt statistics for a task cell

Integration Commands:
  mcp             Start MCP server (for notebook/IDE integration)

Other:
  help            Show this help message
  version         Show version information

Examples:
  teachai init                    # First-time setup
  teachai provider set-key claude # Configure Claude API key
  teachai mcp                     # Serve tools over stdio
  teachai stats                   # Lesson completion overview`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
