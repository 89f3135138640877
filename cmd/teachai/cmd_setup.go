package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ip-59/teachai/internal/config"
)

// cmdInit initializes TeachAI for first-time use
func cmdInit() error {
	fmt.Println("TeachAI - First-Time Setup")
	fmt.Println("==========================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	// 1. Create directory structure
	fmt.Print("Creating ~/.teachai directory structure... ")
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	// 2. Create default config if it doesn't exist
	configPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	// 3. Configure LLM provider
	fmt.Println()
	fmt.Println("LLM Provider Setup")
	fmt.Println("------------------")
	fmt.Println("TeachAI supports: Claude (Anthropic), OpenAI, and Ollama (local)")
	fmt.Println()

	cfg, _ := config.LoadLocalConfig()

	if cfg != nil && cfg.LLM.Providers["claude"] != nil && cfg.LLM.Providers["claude"].APIKey != "" {
		fmt.Println("Claude API key: already configured ✓")
	} else {
		fmt.Print("Enter Claude API key (or press Enter to skip): ")
		key, _ := reader.ReadString('\n')
		key = strings.TrimSpace(key)
		if key != "" {
			secrets := map[string]string{"claude": key}
			if err := config.SaveSecrets(secrets); err != nil {
				fmt.Printf("  ⚠ Failed to save: %v\n", err)
			} else {
				fmt.Println("  ✓ Saved")
			}
		}
	}

	// 4. Check sandbox requirements
	fmt.Println()
	fmt.Print("Checking Python... ")
	pythonBin := "python3"
	if cfg != nil && cfg.Sandbox.PythonBin != "" {
		pythonBin = cfg.Sandbox.PythonBin
	}
	if err := checkPython(pythonBin); err != nil {
		fmt.Printf("⚠ %v\n", err)
	} else {
		fmt.Println("✓")
	}

	fmt.Print("Checking Docker... ")
	if err := checkDocker(); err != nil {
		fmt.Println("⚠ Not available (subprocess sandbox will be used)")
	} else {
		fmt.Println("✓")
	}

	// 5. Summary
	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. teachai doctor        # Verify configuration")
	fmt.Println("  2. teachai mcp           # Serve tools over stdio")
	fmt.Println("  3. teachai start         # Or run the HTTP daemon")

	return nil
}

// cmdDoctor checks system requirements
func cmdDoctor() error {
	fmt.Println("Checking system requirements...")

	allGood := true

	cfg, cfgErr := config.LoadLocalConfig()

	// Check Python (the subprocess sandbox needs it)
	fmt.Print("Python:    ")
	pythonBin := "python3"
	if cfg != nil && cfg.Sandbox.PythonBin != "" {
		pythonBin = cfg.Sandbox.PythonBin
	}
	if err := checkPython(pythonBin); err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else {
		fmt.Printf("✓ %s available\n", pythonBin)
	}

	// Check Docker (optional sandbox backend)
	fmt.Print("Docker:    ")
	if err := checkDocker(); err != nil {
		fmt.Printf("⚠ %v (subprocess sandbox will be used)\n", err)
	} else {
		fmt.Println("✓ available")
	}

	// Check data directory
	fmt.Print("Directory: ")
	dataDir, err := config.DataDir()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		allGood = false
	} else if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		fmt.Println("✗ not created (run 'teachai init')")
		allGood = false
	} else {
		fmt.Printf("✓ %s\n", dataDir)
	}

	// Check config
	fmt.Print("Config:    ")
	if cfgErr != nil {
		fmt.Printf("✗ %v\n", cfgErr)
		allGood = false
	} else {
		fmt.Println("✓ loaded")

		fmt.Println("\nLLM Providers:")
		for name, provider := range cfg.LLM.Providers {
			if !provider.Enabled {
				continue
			}

			fmt.Printf("  %s: ", name)
			if name == "ollama" {
				if err := checkOllama(provider.URL); err != nil {
					fmt.Printf("✗ %v\n", err)
				} else {
					fmt.Printf("✓ available (model: %s)\n", provider.Model)
				}
			} else if provider.APIKey != "" {
				fmt.Printf("✓ configured (model: %s)\n", provider.Model)
			} else {
				fmt.Printf("✗ no API key (run 'teachai provider set-key %s')\n", name)
			}
		}
	}

	// Check daemon status
	fmt.Print("\nDaemon:    ")
	if isRunning() {
		fmt.Println("✓ running")
	} else {
		fmt.Println("⚠ not running (only needed for HTTP mode)")
	}

	fmt.Println()
	if allGood {
		fmt.Println("All checks passed! ✓")
	} else {
		fmt.Println("Some checks failed. Please fix the issues above.")
	}

	return nil
}

// cmdConfig shows current configuration
func cmdConfig() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("TeachAI Configuration")

	fmt.Println("\nLLM:")
	fmt.Printf("  default_provider: %s\n", cfg.LLM.DefaultProvider)
	for name, provider := range cfg.LLM.Providers {
		if provider.Enabled {
			hasKey := provider.APIKey != "" || name == "ollama"
			keyStatus := "✗"
			if hasKey {
				keyStatus = "✓"
			}
			fmt.Printf("  %s: enabled=%t model=%s key=%s\n", name, provider.Enabled, provider.Model, keyStatus)
		}
	}

	fmt.Println("\nSandbox:")
	fmt.Printf("  backend: %s\n", cfg.Sandbox.Backend)
	fmt.Printf("  timeout: %ds\n", cfg.Sandbox.TimeoutSeconds)
	fmt.Printf("  memory:  %dMB\n", cfg.Sandbox.MemoryMB)
	if cfg.Sandbox.Backend == "docker" {
		fmt.Printf("  image:   %s\n", cfg.Sandbox.Docker.Image)
		fmt.Printf("  cpu:     %.1f\n", cfg.Sandbox.Docker.CPULimit)
	} else {
		fmt.Printf("  python:  %s\n", cfg.Sandbox.PythonBin)
	}

	fmt.Println("\nStorage:")
	dbPath := cfg.Storage.SQLitePath
	if dbPath == "" {
		dataDir, _ := config.DataDir()
		dbPath = filepath.Join(dataDir, "teachai.db")
	}
	fmt.Printf("  sqlite: %s\n", dbPath)

	dataDir, _ := config.DataDir()
	fmt.Printf("\nConfig path: %s/config.yaml\n", dataDir)

	return nil
}

// cmdProvider manages LLM provider API keys
func cmdProvider(args []string) error {
	if len(args) < 1 {
		fmt.Println(`Provider management commands:

  teachai provider list              List configured providers
  teachai provider set-key <name>    Set API key for a provider`)
		return nil
	}

	switch args[0] {
	case "list":
		return cmdProviderList()
	case "set-key":
		if len(args) < 2 {
			return fmt.Errorf("provider name required")
		}
		return cmdProviderSetKey(args[1])
	default:
		return fmt.Errorf("unknown provider command: %s", args[0])
	}
}

func cmdProviderList() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Configured LLM Providers:")
	for name, provider := range cfg.LLM.Providers {
		status := "disabled"
		if provider.Enabled {
			if provider.APIKey != "" || name == "ollama" {
				status = "ready"
			} else {
				status = "needs API key"
			}
		}

		isDefault := ""
		if name == cfg.LLM.DefaultProvider {
			isDefault = " (default)"
		}

		fmt.Printf("  %s%s\n", name, isDefault)
		fmt.Printf("    status: %s\n", status)
		fmt.Printf("    model:  %s\n", provider.Model)
		if name == "ollama" && provider.URL != "" {
			fmt.Printf("    url:    %s\n", provider.URL)
		}
		fmt.Println()
	}

	return nil
}

func cmdProviderSetKey(provider string) error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, ok := cfg.LLM.Providers[provider]; !ok {
		return fmt.Errorf("unknown provider: %s (valid: claude, openai, ollama)", provider)
	}

	if provider == "ollama" {
		fmt.Println("Ollama doesn't require an API key.")
		return nil
	}

	fmt.Printf("Enter %s API key: ", provider)
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	key = strings.TrimSpace(key)

	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	secrets := map[string]string{provider: key}
	if err := config.SaveSecrets(secrets); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}

	fmt.Printf("✓ API key saved for %s\n", provider)
	fmt.Println("Restart the daemon for changes to take effect.")
	return nil
}
