package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Ip-59/teachai/internal/attemptlog"
	"github.com/Ip-59/teachai/internal/config"
	"github.com/Ip-59/teachai/internal/llm"
	mcpserver "github.com/Ip-59/teachai/internal/mcp"
	"github.com/Ip-59/teachai/internal/progress"
	"github.com/Ip-59/teachai/internal/sandbox"
	"github.com/Ip-59/teachai/internal/service"
	"github.com/Ip-59/teachai/internal/storage/sqlite"
	"github.com/Ip-59/teachai/internal/taskgen"
)

// cmdMCP starts the MCP server on stdio for notebook and IDE integration.
// Everything runs in-process against the local SQLite database.
func cmdMCP() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the MCP protocol, logs go to stderr only
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	registry := llm.NewRegistry()
	for name, providerCfg := range cfg.LLM.Providers {
		if !providerCfg.Enabled || (providerCfg.APIKey == "" && name != "ollama") {
			continue
		}

		switch name {
		case "claude":
			registry.Register("claude", llm.NewClaudeProvider(llm.ClaudeConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))
		case "openai":
			registry.Register("openai", llm.NewOpenAIProvider(llm.OpenAIConfig{
				APIKey: providerCfg.APIKey,
				Model:  providerCfg.Model,
			}))
		case "ollama":
			registry.Register("ollama", llm.NewOllamaProvider(llm.OllamaConfig{
				BaseURL: providerCfg.URL,
				Model:   providerCfg.Model,
			}))
		}
	}

	if cfg.LLM.DefaultProvider != "auto" {
		if err := registry.SetDefault(cfg.LLM.DefaultProvider); err != nil {
			return fmt.Errorf("default provider: %w", err)
		}
	}
	provider, err := registry.Default()
	if err != nil {
		return fmt.Errorf("no usable LLM provider (run 'teachai provider set-key claude'): %w", err)
	}
	resilient := llm.NewResilientProvider(provider, llm.DefaultResilientConfig())

	executor := buildExecutor(cfg, logger)

	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	dbPath := cfg.Storage.SQLitePath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "teachai.db")
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	templates, err := taskgen.LoadTemplates()
	if err != nil {
		return fmt.Errorf("load fallback templates: %w", err)
	}
	generator := taskgen.NewGenerator(resilient, executor, templates, logger)

	svc := service.New(
		generator,
		executor,
		progress.NewService(sqlite.NewProgressStore(db), logger),
		attemptlog.NewService(sqlite.NewAttemptStore(db), logger),
		nil,
		logger,
	)

	mcpSrv := mcpserver.NewServer(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return mcpSrv.ServeStdio(ctx)
}

// buildExecutor creates the sandbox backend from local configuration. A
// missing Docker daemon degrades to the subprocess backend.
func buildExecutor(cfg *config.LocalConfig, logger *slog.Logger) sandbox.Executor {
	sandboxCfg := sandbox.Config{
		Timeout:  time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		MemoryMB: cfg.Sandbox.MemoryMB,
		CPULimit: cfg.Sandbox.Docker.CPULimit,
		Image:    cfg.Sandbox.Docker.Image,
	}

	if cfg.Sandbox.Backend == "docker" {
		executor, err := sandbox.NewDockerExecutor(sandboxCfg)
		if err == nil {
			return executor
		}
		logger.Warn("Docker sandbox not available, using subprocess backend", "error", err)
	}

	return sandbox.NewSubprocessExecutor(sandboxCfg)
}

func checkDocker() error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found in PATH")
	}

	cmd := exec.Command("docker", "info")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("docker daemon not running")
	}

	return nil
}

func checkPython(bin string) error {
	if bin == "" {
		bin = "python3"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%s not found in PATH", bin)
	}
	return nil
}

func checkOllama(url string) error {
	if url == "" {
		url = "http://localhost:11434"
	}

	resp, err := http.Get(url + "/api/tags")
	if err != nil {
		return fmt.Errorf("not reachable at %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
