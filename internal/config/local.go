package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig holds configuration for local single-user mode, read from
// ~/.teachai/config.yaml. API keys live in a separate secrets.yaml so the
// config file itself can be shared or committed without leaking them.
type LocalConfig struct {
	LLM     LLMConfig     `yaml:"llm"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Storage StorageConfig `yaml:"storage"`
}

// LLMConfig selects completion providers.
type LLMConfig struct {
	DefaultProvider string                     `yaml:"default_provider"`
	Providers       map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures a single provider.
type ProviderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	URL     string `yaml:"url,omitempty"` // Ollama only
	APIKey  string `yaml:"-"`             // filled from secrets.yaml
}

// SandboxConfig governs submission execution.
type SandboxConfig struct {
	Backend string              `yaml:"backend"` // subprocess or docker
	Docker  DockerSandboxConfig `yaml:"docker"`

	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MemoryMB       int    `yaml:"memory_mb"`
	PythonBin      string `yaml:"python_bin"`
}

// DockerSandboxConfig holds Docker backend settings.
type DockerSandboxConfig struct {
	Image    string  `yaml:"image"`
	CPULimit float64 `yaml:"cpu_limit"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	// Path of the SQLite database; empty means <data dir>/teachai.db.
	SQLitePath string `yaml:"sqlite_path"`
}

type secretEntry struct {
	APIKey string `yaml:"api_key"`
}

// SecretsConfig is the shape of secrets.yaml.
type SecretsConfig struct {
	Providers map[string]secretEntry `yaml:"providers"`
}

// DataDir returns ~/.teachai.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".teachai"), nil
}

// EnsureDataDir creates the data directory tree if missing and returns it.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}

	for _, sub := range []string{"", "logs", "cache"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns the configuration written by "teachai init".
// Ollama is enabled out of the box since it needs no key; Claude activates
// once a key is stored.
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		LLM: LLMConfig{
			DefaultProvider: "auto",
			Providers: map[string]*ProviderConfig{
				"claude": {
					Enabled: true,
					Model:   "claude-sonnet-4-20250514",
				},
				"openai": {
					Enabled: false,
					Model:   "gpt-4o",
				},
				"ollama": {
					Enabled: true,
					URL:     "http://localhost:11434",
					Model:   "llama2",
				},
			},
		},
		Sandbox: SandboxConfig{
			Backend: "subprocess",
			Docker: DockerSandboxConfig{
				Image:    "python:3.12-alpine",
				CPULimit: 0.5,
			},
			TimeoutSeconds: 10,
			MemoryMB:       256,
			PythonBin:      "python3",
		},
		Storage: StorageConfig{},
	}
}

// LoadLocalConfig reads config.yaml and overlays secrets.yaml. A missing
// config file yields the defaults, so every command works before init.
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultLocalConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Unmarshal over the defaults so a partial file keeps sane values.
	cfg := DefaultLocalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	return cfg, nil
}

func loadSecrets(dir string, cfg *LocalConfig) error {
	secretsPath := filepath.Join(dir, "secrets.yaml")
	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	for name, secret := range secrets.Providers {
		if provider, ok := cfg.LLM.Providers[name]; ok {
			provider.APIKey = secret.APIKey
		}
	}

	return nil
}

// SaveLocalConfig writes cfg to ~/.teachai/config.yaml. API keys never end
// up here; the APIKey field is excluded from marshalling.
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDataDir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// SaveSecrets writes provider API keys to secrets.yaml, owner-only.
func SaveSecrets(secrets map[string]string) error {
	dir, err := EnsureDataDir()
	if err != nil {
		return err
	}

	out := SecretsConfig{Providers: make(map[string]secretEntry, len(secrets))}
	for name, key := range secrets {
		out.Providers[name] = secretEntry{APIKey: key}
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	return nil
}
