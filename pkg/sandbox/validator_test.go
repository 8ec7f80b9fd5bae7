package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
	"github.com/relayci/fixpipeline/pkg/adapter"
)

// newLocalGitRepo creates a throwaway git repository on disk with one
// commit, so Validator.Validate can clone it with a plain "file://"-free
// local path the way `git clone` accepts any filesystem path as a URL.
func newLocalGitRepo(t *testing.T, files map[string]string) (dir, commitSHA string) {
	t.Helper()
	dir = t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v: %s", args, err, out)
		}
	}

	run("init")
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	run("add", ".")
	run("commit", "-m", "initial")

	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		t.Fatalf("rev-parse failed: %v", err)
	}
	commitSHA = string(out[:len(out)-1])
	return dir, commitSHA
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	return l
}

func TestValidate_HappyPathPasses(t *testing.T) {
	repoDir, sha := newLocalGitRepo(t, map[string]string{
		"requirements.txt": "flask==2.0.0\n",
	})

	runtime := NewMockRuntime().WithResponse(
		[]string{"pytest", "-v"},
		ExecResult{ExitCode: 0, Stdout: "===== 5 passed in 0.1s ====="},
	)

	v := NewValidator(runtime, adapter.DefaultRegistry(), config.SandboxConfig{
		Image: "python:3.11", CloneDepth: 1, CloneTimeoutSec: 30, PatchCheckTimeoutS: 10, ValidateTimeoutSec: 30,
	}, testLogger())

	result := v.Validate(context.Background(), Request{
		RepoURL:     repoDir,
		CommitSHA:   sha,
		AdapterName: "python",
	})

	if result.Status != StatusPassed {
		t.Fatalf("Status = %q, want passed; error=%q logs=%q", result.Status, result.ErrorMessage, result.Logs)
	}
	if result.Tests.Passed != 5 || result.Tests.Failed != 0 {
		t.Fatalf("Tests = %+v", result.Tests)
	}
	if result.FrameworkDetected != "pytest" {
		t.Fatalf("FrameworkDetected = %q, want pytest", result.FrameworkDetected)
	}
}

func TestValidate_TestFailureYieldsFailedStatus(t *testing.T) {
	repoDir, sha := newLocalGitRepo(t, map[string]string{
		"requirements.txt": "flask==2.0.0\n",
	})

	runtime := NewMockRuntime().WithResponse(
		[]string{"pytest", "-v"},
		ExecResult{ExitCode: 1, Stdout: "===== 3 passed, 2 failed in 0.1s ====="},
	)

	v := NewValidator(runtime, adapter.DefaultRegistry(), config.SandboxConfig{
		Image: "python:3.11", CloneDepth: 1, CloneTimeoutSec: 30, PatchCheckTimeoutS: 10, ValidateTimeoutSec: 30,
	}, testLogger())

	result := v.Validate(context.Background(), Request{RepoURL: repoDir, CommitSHA: sha, AdapterName: "python"})

	if result.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", result.Status)
	}
	if result.Tests.Failed != 2 {
		t.Fatalf("Tests.Failed = %d, want 2", result.Tests.Failed)
	}
}

func TestValidate_InstallFailureShortCircuitsBeforeRunning(t *testing.T) {
	repoDir, sha := newLocalGitRepo(t, map[string]string{
		"requirements.txt": "flask==2.0.0\n",
	})

	runtime := NewMockRuntime().WithResponse(
		[]string{"pip", "install", "-e", "."},
		ExecResult{ExitCode: 1, Stderr: "no matching distribution"},
	)

	v := NewValidator(runtime, adapter.DefaultRegistry(), config.SandboxConfig{
		Image: "python:3.11", CloneDepth: 1, CloneTimeoutSec: 30, PatchCheckTimeoutS: 10, ValidateTimeoutSec: 30,
	}, testLogger())

	result := v.Validate(context.Background(), Request{RepoURL: repoDir, CommitSHA: sha, AdapterName: "python"})

	if result.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", result.Status)
	}
}

func TestValidate_TimeoutDuringTestRun(t *testing.T) {
	repoDir, sha := newLocalGitRepo(t, map[string]string{
		"requirements.txt": "flask==2.0.0\n",
	})

	runtime := NewMockRuntime().WithResponse(
		[]string{"pytest", "-v"},
		ExecResult{TimedOut: true},
	)

	v := NewValidator(runtime, adapter.DefaultRegistry(), config.SandboxConfig{
		Image: "python:3.11", CloneDepth: 1, CloneTimeoutSec: 30, PatchCheckTimeoutS: 10, ValidateTimeoutSec: 30,
	}, testLogger())

	result := v.Validate(context.Background(), Request{RepoURL: repoDir, CommitSHA: sha, AdapterName: "python"})

	if result.Status != StatusTimeout {
		t.Fatalf("Status = %q, want timeout", result.Status)
	}
}

func TestValidate_UnknownAdapterErrors(t *testing.T) {
	v := NewValidator(NewMockRuntime(), adapter.DefaultRegistry(), config.SandboxConfig{}, testLogger())
	result := v.Validate(context.Background(), Request{AdapterName: "cobol"})
	if result.Status != StatusError {
		t.Fatalf("Status = %q, want error", result.Status)
	}
}

func TestValidate_CloneFailureYieldsError(t *testing.T) {
	v := NewValidator(NewMockRuntime(), adapter.DefaultRegistry(), config.SandboxConfig{CloneTimeoutSec: 5}, testLogger())
	result := v.Validate(context.Background(), Request{
		RepoURL:     "/nonexistent/path/that/does/not/exist",
		AdapterName: "python",
	})
	if result.Status != StatusError {
		t.Fatalf("Status = %q, want error", result.Status)
	}
}

func TestValidate_StepOverrideReplacesCommand(t *testing.T) {
	repoDir, sha := newLocalGitRepo(t, map[string]string{
		"requirements.txt": "flask==2.0.0\n",
	})

	runtime := NewMockRuntime().WithResponse(
		[]string{"tox", "-e", "py311"},
		ExecResult{ExitCode: 0, Stdout: "===== 1 passed in 0.1s ====="},
	)

	v := NewValidator(runtime, adapter.DefaultRegistry(), config.SandboxConfig{
		Image: "python:3.11", CloneDepth: 1, CloneTimeoutSec: 30, PatchCheckTimeoutS: 10, ValidateTimeoutSec: 30,
	}, testLogger())

	result := v.Validate(context.Background(), Request{
		RepoURL:     repoDir,
		CommitSHA:   sha,
		AdapterName: "python",
		ValidationSteps: []StepOverride{
			{Name: "test", Command: []string{"tox", "-e", "py311"}},
		},
	})

	if result.Status != StatusPassed {
		t.Fatalf("Status = %q, want passed; logs=%q", result.Status, result.Logs)
	}
}
