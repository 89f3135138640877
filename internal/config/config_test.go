package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLMProvider != "claude" {
		t.Errorf("LLMProvider = %q; want claude", cfg.LLMProvider)
	}
	if cfg.SandboxBackend != "subprocess" {
		t.Errorf("SandboxBackend = %q; want subprocess", cfg.SandboxBackend)
	}
	if cfg.SandboxTimeout != 10 {
		t.Errorf("SandboxTimeout = %d; want 10", cfg.SandboxTimeout)
	}
	if cfg.PythonBin != "python3" {
		t.Errorf("PythonBin = %q; want python3", cfg.PythonBin)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("SANDBOX_BACKEND", "docker")
	t.Setenv("SANDBOX_TIMEOUT", "5")
	t.Setenv("SANDBOX_CPU_LIMIT", "1.5")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLMProvider != "ollama" {
		t.Errorf("LLMProvider = %q; want ollama", cfg.LLMProvider)
	}
	if cfg.SandboxBackend != "docker" {
		t.Errorf("SandboxBackend = %q; want docker", cfg.SandboxBackend)
	}
	if cfg.SandboxTimeout != 5 {
		t.Errorf("SandboxTimeout = %d; want 5", cfg.SandboxTimeout)
	}
	if cfg.SandboxCPULimit != 1.5 {
		t.Errorf("SandboxCPULimit = %v; want 1.5", cfg.SandboxCPULimit)
	}
	if !cfg.Debug {
		t.Error("Debug = false; want true")
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SANDBOX_TIMEOUT", "not-a-number")
	t.Setenv("DEBUG", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.SandboxTimeout != 10 {
		t.Errorf("SandboxTimeout = %d; want default 10", cfg.SandboxTimeout)
	}
	if cfg.Debug {
		t.Error("Debug = true; want default false")
	}
}
