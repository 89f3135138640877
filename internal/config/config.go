// Package config carries both configuration surfaces: environment variables
// for daemon mode and the ~/.teachai YAML files for local single-user mode.
package config

import (
	"os"
	"strconv"
)

// Config holds daemon-mode configuration, loaded from the environment.
type Config struct {
	Debug bool

	// Storage. A Postgres URL selects Postgres; otherwise SQLite is used at
	// SQLitePath (default <data dir>/teachai.db).
	DatabaseURL string
	SQLitePath  string

	// Optional broker for attempt events.
	RabbitMQURL string

	// LLM
	LLMProvider string // claude, openai, ollama
	LLMAPIKey   string
	LLMModel    string
	OllamaURL   string

	// Sandbox
	SandboxBackend  string // subprocess, docker
	SandboxTimeout  int    // seconds
	SandboxMemoryMB int
	SandboxCPULimit float64
	SandboxImage    string
	PythonBin       string
}

// Load reads configuration from the environment. Unset variables fall back
// to defaults; malformed numeric values do too rather than failing startup.
func Load() (*Config, error) {
	cfg := &Config{
		Debug:           envBool("DEBUG", false),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		SQLitePath:      envStr("SQLITE_PATH", ""),
		RabbitMQURL:     envStr("RABBITMQ_URL", ""),
		LLMProvider:     envStr("LLM_PROVIDER", "claude"),
		LLMAPIKey:       envStr("LLM_API_KEY", ""),
		LLMModel:        envStr("LLM_MODEL", "claude-sonnet-4-20250514"),
		OllamaURL:       envStr("OLLAMA_URL", "http://localhost:11434"),
		SandboxBackend:  envStr("SANDBOX_BACKEND", "subprocess"),
		SandboxTimeout:  envInt("SANDBOX_TIMEOUT", 10),
		SandboxMemoryMB: envInt("SANDBOX_MEMORY_MB", 256),
		SandboxCPULimit: envFloat("SANDBOX_CPU_LIMIT", 0.5),
		SandboxImage:    envStr("SANDBOX_IMAGE", "python:3.12-alpine"),
		PythonBin:       envStr("PYTHON_BIN", "python3"),
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
