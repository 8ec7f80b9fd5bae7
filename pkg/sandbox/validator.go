package sandbox

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relayci/fixpipeline/internal/config"
	"github.com/relayci/fixpipeline/pkg/adapter"
	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

// Validator runs the 8-phase sequence described in §4.9 against a
// pluggable ContainerRuntime.
type Validator struct {
	runtime  ContainerRuntime
	adapters *adapter.Registry
	cfg      config.SandboxConfig
	log      *logrus.Logger
}

func NewValidator(runtime ContainerRuntime, adapters *adapter.Registry, cfg config.SandboxConfig, log *logrus.Logger) *Validator {
	return &Validator{runtime: runtime, adapters: adapters, cfg: cfg, log: log}
}

// Validate runs phases 1-8 against req, returning a Result whose Status
// reflects the outcome: an error in phases 1-4 maps to StatusError, a
// timed-out test run to StatusTimeout, a nonzero exit code to
// StatusFailed, and a clean run with no blocking scan to StatusPassed.
func (v *Validator) Validate(ctx context.Context, req Request) Result {
	start := time.Now()
	result := Result{Status: StatusPending}

	adp, ok := v.adapters.ByName(req.AdapterName)
	if !ok {
		return errorResult(result, start, "unknown adapter: "+req.AdapterName)
	}

	// Phase 1: cloning.
	result.Status = StatusCloning
	cloneTimeout := durationOrDefault(v.cfg.CloneTimeoutSec, 120)
	repoDir, err := cloneRepo(ctx, req.RepoURL, req.Branch, req.CommitSHA, depthOrDefault(v.cfg.CloneDepth), cloneTimeout)
	if err != nil {
		return errorResult(result, start, err.Error())
	}
	defer os.RemoveAll(repoDir)

	// Phase 2: patching.
	result.Status = StatusPatching
	patchTimeout := durationOrDefault(v.cfg.PatchCheckTimeoutS, 30)
	if err := applyPatch(ctx, repoDir, req.Diff, patchTimeout); err != nil {
		return errorResult(result, start, err.Error())
	}

	// Phase 3: detect framework.
	repoFiles, err := topLevelFiles(repoDir)
	if err != nil {
		return errorResult(result, start, err.Error())
	}
	result.FrameworkDetected = detectFramework(repoFiles)

	// Phase 4: container snapshot.
	spec := ContainerSpec{
		Image:          v.cfg.Image,
		Mounts:         []Mount{{Source: repoDir, Target: "/workspace"}},
		NetworkEnabled: v.cfg.NetworkEnabled,
		CPULimit:       v.cfg.CPULimit,
		MemoryLimitMB:  v.cfg.MemoryLimitMB,
		WorkingDir:     "/workspace",
	}
	container, err := v.runtime.Create(ctx, spec)
	if err != nil {
		return errorResult(result, start, err.Error())
	}
	defer container.Remove(context.Background())

	steps := applyStepOverrides(adp.BuildValidationSteps("/workspace"), req.ValidationSteps)

	validateTimeout := durationOrDefault(v.cfg.ValidateTimeoutSec, 600)
	var logLines []string
	var testResult ExecResult
	var ranTest bool

	for _, step := range steps {
		if step.Name == "install" {
			result.Status = StatusInstalling
		} else {
			result.Status = StatusRunning
		}

		stepTimeout := validateTimeout
		if step.TimeoutSec > 0 {
			stepTimeout = time.Duration(step.TimeoutSec) * time.Second
		}

		execResult, err := container.Exec(ctx, step.Command, step.WorkingDir, stepTimeout)
		if err != nil {
			return errorResult(result, start, err.Error())
		}
		logLines = append(logLines, formatStepLog(step.Name, execResult))

		if step.Name == "test" {
			testResult = execResult
			ranTest = true
		}

		if execResult.TimedOut {
			result.Status = StatusTimeout
			result.Logs = strings.Join(logLines, "\n")
			result.ExecutionTimeSeconds = time.Since(start).Seconds()
			return result
		}
		if execResult.ExitCode != 0 && step.Name != "test" {
			result.Status = StatusFailed
			result.Logs = strings.Join(logLines, "\n")
			result.ExecutionTimeSeconds = time.Since(start).Seconds()
			return result
		}
	}

	result.Logs = strings.Join(logLines, "\n")
	result.Tests = parseTestCounts(result.FrameworkDetected, testResult.Stdout)

	// Phase 7: security scans.
	gitleaks := runGitleaks(ctx, repoDir, v.log)
	trivy := runTrivy(ctx, repoDir, v.log)
	result.Scans = Scans{
		Gitleaks: gitleaks,
		Trivy:    trivy,
		SBOM:     buildSBOM(nil),
	}

	result.ExecutionTimeSeconds = time.Since(start).Seconds()

	blocked := gitleaks.Verdict == ScanBlock || trivy.Verdict == ScanBlock
	switch {
	case !ranTest:
		result.Status = StatusFailed
	case testResult.ExitCode == 0 && result.Tests.Failed == 0 && !blocked:
		result.Status = StatusPassed
	default:
		result.Status = StatusFailed
	}

	return result
}

// applyStepOverrides replaces the command of any adapter-built step whose
// name matches a ValidationRequest.validation_steps? override, leaving
// unmatched steps untouched.
func applyStepOverrides(steps []fixtypes.Step, overrides []StepOverride) []fixtypes.Step {
	if len(overrides) == 0 {
		return steps
	}
	byName := make(map[string][]string, len(overrides))
	for _, o := range overrides {
		byName[o.Name] = o.Command
	}
	out := make([]fixtypes.Step, len(steps))
	copy(out, steps)
	for i, s := range out {
		if cmd, ok := byName[s.Name]; ok {
			out[i].Command = cmd
		}
	}
	return out
}

func errorResult(result Result, start time.Time, msg string) Result {
	result.Status = StatusError
	result.ErrorMessage = msg
	result.ExecutionTimeSeconds = time.Since(start).Seconds()
	return result
}

func durationOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func depthOrDefault(depth int) int {
	if depth <= 0 {
		return 50
	}
	return depth
}

func topLevelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			files = append(files, e.Name())
		}
	}
	return files, nil
}

func formatStepLog(name string, r ExecResult) string {
	return "=== " + name + " ===\n" + r.Stdout + r.Stderr
}
