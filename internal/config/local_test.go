package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if cfg.LLM.DefaultProvider != "auto" {
		t.Errorf("DefaultProvider = %q; want auto", cfg.LLM.DefaultProvider)
	}
	if len(cfg.LLM.Providers) != 3 {
		t.Errorf("providers = %d; want claude, openai, ollama", len(cfg.LLM.Providers))
	}
	if cfg.Sandbox.Backend != "subprocess" {
		t.Errorf("Sandbox.Backend = %q; want subprocess", cfg.Sandbox.Backend)
	}
	if cfg.Sandbox.TimeoutSeconds <= 0 {
		t.Error("Sandbox.TimeoutSeconds should be positive")
	}
}

func TestLoadLocalConfig_NoFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if cfg.LLM.DefaultProvider != "auto" {
		t.Error("missing config file should yield defaults")
	}
}

func TestLoadLocalConfig_FileOverridesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".teachai")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}

	data := []byte("sandbox:\n  backend: docker\n  timeout_seconds: 5\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}

	if cfg.Sandbox.Backend != "docker" {
		t.Errorf("Sandbox.Backend = %q; want docker", cfg.Sandbox.Backend)
	}
	if cfg.Sandbox.TimeoutSeconds != 5 {
		t.Errorf("Sandbox.TimeoutSeconds = %d; want 5", cfg.Sandbox.TimeoutSeconds)
	}
	// Untouched sections keep their defaults.
	if cfg.LLM.DefaultProvider != "auto" {
		t.Errorf("LLM.DefaultProvider = %q; want auto", cfg.LLM.DefaultProvider)
	}
}

func TestSecretsRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := SaveLocalConfig(DefaultLocalConfig()); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}
	if err := SaveSecrets(map[string]string{"claude": "sk-test-123"}); err != nil {
		t.Fatalf("SaveSecrets() error = %v", err)
	}

	// Secrets file must not be world-readable.
	info, err := os.Stat(filepath.Join(home, ".teachai", "secrets.yaml"))
	if err != nil {
		t.Fatalf("stat secrets: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("secrets mode = %v; want 0600", info.Mode().Perm())
	}

	cfg, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if cfg.LLM.Providers["claude"].APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q; want sk-test-123", cfg.LLM.Providers["claude"].APIKey)
	}
}

func TestSaveLocalConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultLocalConfig()
	cfg.Sandbox.MemoryMB = 128

	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}

	loaded, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if loaded.Sandbox.MemoryMB != 128 {
		t.Errorf("Sandbox.MemoryMB = %d; want 128", loaded.Sandbox.MemoryMB)
	}
}
