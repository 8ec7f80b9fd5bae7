package sandbox

import (
	"context"
	"time"
)

// Mount binds a host directory into the container at Target.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerSpec describes the isolated environment phase 4 creates:
// dropped capabilities, no-new-privileges, resource quotas, and network
// disabled unless the adapter requires it.
type ContainerSpec struct {
	Image          string
	Mounts         []Mount
	NetworkEnabled bool
	CPULimit       string
	MemoryLimitMB  int
	WorkingDir     string
}

// ExecResult is one command's outcome inside a running Container.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Container is a running sandbox instance returned by ContainerRuntime.Create.
type Container interface {
	// Exec runs cmd inside the container, bounded by timeout, and
	// returns once it exits, is killed on timeout, or ctx is canceled.
	Exec(ctx context.Context, cmd []string, workingDir string, timeout time.Duration) (ExecResult, error)
	// Remove stops and deletes the container. Safe to call more than once.
	Remove(ctx context.Context) error
}

// ContainerRuntime is the pluggable sandbox backend (spec §9 "Sandbox
// isolation" Non-goal note): a real implementation driving the host
// daemon, and a mock record-and-replay implementation for tests and for
// running the pipeline without root.
type ContainerRuntime interface {
	Create(ctx context.Context, spec ContainerSpec) (Container, error)
}
