// Package sandbox runs untrusted learner and model-generated Python code
// with captured stdout, isolated variable bindings, and a hard wall-clock
// budget. Two backends are provided: a subprocess backend with interpreter
// isolation and rlimits, and a Docker backend with network disabled and
// memory/CPU limits.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Executor runs a code string in isolation.
type Executor interface {
	// Execute runs code with a fresh, empty namespace. It never returns a
	// non-nil error for failures of the executed code itself (syntax error,
	// raised exception, timeout); those populate ExecResult.Error. A non-nil
	// error means the sandbox infrastructure itself failed.
	Execute(ctx context.Context, code string) (*ExecResult, error)
}

// ExecResult is the outcome of one sandboxed run.
type ExecResult struct {
	Stdout   string         // everything written to stdout, verbatim
	Bindings map[string]any // final top-level variable bindings
	Error    string         // exception type + message + traceback, empty on success
	Duration time.Duration
}

// Failed returns true if the run raised or timed out.
func (r *ExecResult) Failed() bool {
	return r.Error != ""
}

// Config holds resource limits shared by both backends.
type Config struct {
	Timeout  time.Duration // wall-clock budget, mandatory
	MemoryMB int           // address-space / container memory limit
	CPULimit float64       // container CPU limit (Docker backend only)
	Image    string        // container image (Docker backend only)
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Timeout:  3 * time.Second,
		MemoryMB: 128,
		CPULimit: 0.5,
		Image:    "python:3.12-alpine",
	}
}

// SubprocessExecutor runs code in a separate python3 process started in
// isolated mode (-I) inside a throwaway directory with a scrubbed
// environment. CPU and address-space rlimits are applied by the harness
// before the learner code runs.
type SubprocessExecutor struct {
	cfg        Config
	pythonPath string
}

// NewSubprocessExecutor creates a subprocess-backed executor.
func NewSubprocessExecutor(cfg Config) *SubprocessExecutor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = DefaultConfig().MemoryMB
	}
	return &SubprocessExecutor{cfg: cfg, pythonPath: "python3"}
}

func (e *SubprocessExecutor) Execute(ctx context.Context, code string) (*ExecResult, error) {
	tmpDir, err := os.MkdirTemp("", "teachai-run-*")
	if err != nil {
		return nil, fmt.Errorf("create sandbox dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	files := harnessFiles(code, e.cfg)
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	// -I: isolated mode (no user site, no env injection), -u: unbuffered
	// stdout so partial output survives a kill.
	cmd := exec.CommandContext(runCtx, e.pythonPath, "-I", "-u", harnessFileName)
	cmd.Dir = tmpDir
	cmd.Env = []string{"PATH=/usr/bin:/bin", "HOME=" + tmpDir, "LANG=C.UTF-8"}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:   stdout.String(),
		Bindings: map[string]any{},
		Duration: duration,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.Error = fmt.Sprintf("TimeoutError: execution exceeded %s", e.cfg.Timeout)
		return result, nil
	}

	// The harness writes bindings and error text to a side file so they
	// never mix with captured stdout.
	out, err := readHarnessResult(filepath.Join(tmpDir, resultFileName))
	if err != nil {
		if runErr != nil {
			// Harness never started or died before writing its result
			// (e.g. rlimit kill). Surface what we know.
			result.Error = fmt.Sprintf("ExecutionError: %v\n%s", runErr, stderr.String())
			return result, nil
		}
		return nil, fmt.Errorf("read harness result: %w", err)
	}

	result.Bindings = out.Bindings
	result.Error = out.Error
	return result, nil
}

var _ Executor = (*SubprocessExecutor)(nil)
