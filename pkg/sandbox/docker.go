package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/sirupsen/logrus"
)

// DockerRuntime drives the host Docker daemon through the `docker` CLI.
// Image resolution goes through go-containerregistry so a digest-pinned
// reference is resolved and validated before `docker create` ever shells
// out, catching an unreachable registry or a retagged image early.
type DockerRuntime struct {
	log *logrus.Logger
}

func NewDockerRuntime(log *logrus.Logger) *DockerRuntime {
	return &DockerRuntime{log: log}
}

func (r *DockerRuntime) Create(ctx context.Context, spec ContainerSpec) (Container, error) {
	if _, err := crane.Digest(spec.Image); err != nil {
		return nil, fmt.Errorf("sandbox: resolving image %s: %w", spec.Image, err)
	}

	args := []string{"create",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
	}
	if spec.MemoryLimitMB > 0 {
		args = append(args, "--memory", strconv.Itoa(spec.MemoryLimitMB)+"m")
	}
	if spec.CPULimit != "" {
		args = append(args, "--cpus", spec.CPULimit)
	}
	if !spec.NetworkEnabled {
		args = append(args, "--network", "none")
	}
	for _, m := range spec.Mounts {
		bind := m.Source + ":" + m.Target
		if m.ReadOnly {
			bind += ":ro"
		}
		args = append(args, "-v", bind)
	}
	if spec.WorkingDir != "" {
		args = append(args, "-w", spec.WorkingDir)
	}
	args = append(args, spec.Image, "sleep", "infinity")

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("sandbox: docker create failed: %w: %s", err, out)
	}
	containerID := firstLine(string(out))

	if err := exec.CommandContext(ctx, "docker", "start", containerID).Run(); err != nil {
		return nil, fmt.Errorf("sandbox: docker start failed: %w", err)
	}

	return &dockerContainer{id: containerID, log: r.log}, nil
}

type dockerContainer struct {
	id  string
	log *logrus.Logger
}

func (c *dockerContainer) Exec(ctx context.Context, cmd []string, workingDir string, timeout time.Duration) (ExecResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"exec"}
	if workingDir != "" {
		args = append(args, "-w", workingDir)
	}
	args = append(args, c.id)
	args = append(args, cmd...)

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(execCtx, "docker", args...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	err := command.Run()

	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if execCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("sandbox: docker exec failed: %w", err)
	}
	return result, nil
}

func (c *dockerContainer) Remove(ctx context.Context) error {
	if err := exec.CommandContext(ctx, "docker", "rm", "-f", c.id).Run(); err != nil {
		c.log.WithError(err).WithField("container_id", c.id).Warn("sandbox: failed to remove container")
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
