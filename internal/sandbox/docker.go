package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerExecutor runs each code string in a throwaway container with the
// network disabled and memory/CPU limits applied. This is the hardened
// backend: the executed code sees no host filesystem, network, or
// environment.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
}

// NewDockerExecutor creates a Docker-backed executor and verifies the
// daemon is reachable.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = DefaultConfig().MemoryMB
	}
	if cfg.CPULimit <= 0 {
		cfg.CPULimit = DefaultConfig().CPULimit
	}
	if cfg.Image == "" {
		cfg.Image = DefaultConfig().Image
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	return &DockerExecutor{client: cli, cfg: cfg}, nil
}

func (e *DockerExecutor) Execute(ctx context.Context, code string) (*ExecResult, error) {
	if err := e.ensureImage(ctx, e.cfg.Image); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	containerCfg := &container.Config{
		Image:           e.cfg.Image,
		Cmd:             []string{"sh", "-c", "while true; do sleep 3600; done"},
		WorkingDir:      "/workspace",
		NetworkDisabled: true,
		Tty:             false,
		Labels: map[string]string{
			"teachai.sandbox": "true",
		},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(e.cfg.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(e.cfg.CPULimit * 1e9),
		},
	}

	resp, err := e.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		_ = e.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	if err := e.copyFiles(ctx, resp.ID, harnessFiles(code, e.cfg)); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}

	result, err := e.execHarness(ctx, resp.ID)
	if err != nil {
		return nil, err
	}

	// Bindings and error text live in result.json inside the container.
	// A timed-out run has no result file; the timeout error is already set.
	if result.Error == "" || !strings.HasPrefix(result.Error, "TimeoutError") {
		if data, err := e.copyFileOut(ctx, resp.ID, "/workspace/"+resultFileName); err == nil {
			if out, perr := parseHarnessResult(data); perr == nil {
				result.Bindings = out.Bindings
				result.Error = out.Error
			}
		}
	}

	return result, nil
}

func (e *DockerExecutor) execHarness(ctx context.Context, containerID string) (*ExecResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	execResp, err := e.client.ContainerExecCreate(execCtx, containerID, container.ExecOptions{
		Cmd:          []string{"python3", "-I", "-u", harnessFileName},
		WorkingDir:   "/workspace",
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	start := time.Now()
	attachResp, err := e.client.ContainerExecAttach(execCtx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var outBuf bytes.Buffer
	_, copyErr := io.Copy(&outBuf, attachResp.Reader)
	duration := time.Since(start)

	stdout, _ := demuxOutput(outBuf.Bytes())
	result := &ExecResult{
		Stdout:   stdout,
		Bindings: map[string]any{},
		Duration: duration,
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Sprintf("TimeoutError: execution exceeded %s", e.cfg.Timeout)
		return result, nil
	}
	if copyErr != nil {
		return nil, fmt.Errorf("read exec output: %w", copyErr)
	}

	return result, nil
}

// copyFiles copies sandbox files into a running container as a tar stream.
func (e *DockerExecutor) copyFiles(ctx context.Context, containerID string, files map[string]string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for name, content := range files {
		header := &tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return fmt.Errorf("write tar content: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}

	return e.client.CopyToContainer(ctx, containerID, "/workspace", &buf, container.CopyToContainerOptions{})
}

// copyFileOut reads a single file back out of the container.
func (e *DockerExecutor) copyFileOut(ctx context.Context, containerID, path string) ([]byte, error) {
	reader, _, err := e.client.CopyFromContainer(ctx, containerID, path)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if header.Typeflag == tar.TypeReg {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("file %s not found in archive", path)
}

// Close closes the Docker client.
func (e *DockerExecutor) Close() error {
	return e.client.Close()
}

func (e *DockerExecutor) ensureImage(ctx context.Context, img string) error {
	_, err := e.client.ImageInspect(ctx, img)
	if err == nil {
		return nil // Already present
	}

	reader, err := e.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	// Drain the reader to complete the pull
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxOutput separates Docker multiplexed stdout/stderr streams.
// Docker stream protocol uses 8-byte headers: [type][0][0][0][size1][size2][size3][size4]
// type: 1=stdout, 2=stderr
func demuxOutput(data []byte) (stdout, stderr string) {
	var outBuf, errBuf strings.Builder

	for len(data) >= 8 {
		streamType := data[0]
		size := int(data[4])<<24 | int(data[5])<<16 | int(data[6])<<8 | int(data[7])
		data = data[8:]

		if size > len(data) {
			size = len(data)
		}

		chunk := string(data[:size])
		data = data[size:]

		switch streamType {
		case 1:
			outBuf.WriteString(chunk)
		case 2:
			errBuf.WriteString(chunk)
		}
	}

	if outBuf.Len() == 0 && errBuf.Len() == 0 && len(data) > 0 {
		return string(data), ""
	}

	return outBuf.String(), errBuf.String()
}

var _ Executor = (*DockerExecutor)(nil)
