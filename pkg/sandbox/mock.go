package sandbox

import (
	"context"
	"strings"
	"time"
)

// MockRuntime is a record-and-replay ContainerRuntime: each Exec call is
// matched against Responses by its command joined with a space, falling
// back to DefaultResult when no entry matches. It never shells out,
// keeping the pipeline runnable in CI and on contributor machines
// without root or a Docker daemon.
type MockRuntime struct {
	Responses     map[string]ExecResult
	DefaultResult ExecResult
}

func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		Responses:     map[string]ExecResult{},
		DefaultResult: ExecResult{ExitCode: 0},
	}
}

// WithResponse registers the ExecResult returned for a given command.
func (r *MockRuntime) WithResponse(cmd []string, result ExecResult) *MockRuntime {
	r.Responses[strings.Join(cmd, " ")] = result
	return r
}

func (r *MockRuntime) Create(_ context.Context, spec ContainerSpec) (Container, error) {
	return &mockContainer{runtime: r}, nil
}

type mockContainer struct {
	runtime *MockRuntime
	removed bool
}

func (c *mockContainer) Exec(_ context.Context, cmd []string, _ string, _ time.Duration) (ExecResult, error) {
	if result, ok := c.runtime.Responses[strings.Join(cmd, " ")]; ok {
		return result, nil
	}
	return c.runtime.DefaultResult, nil
}

func (c *mockContainer) Remove(_ context.Context) error {
	c.removed = true
	return nil
}
