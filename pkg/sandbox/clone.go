package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// cloneRepo performs a shallow clone of repoURL at branch into a fresh
// temp directory, then checks out commitSHA, bounded by depth and
// timeout. The caller owns cleanup of the returned directory.
func cloneRepo(ctx context.Context, repoURL, branch, commitSHA string, depth int, timeout time.Duration) (string, error) {
	dir, err := os.MkdirTemp("", "fixpipeline-sandbox-*")
	if err != nil {
		return "", fmt.Errorf("sandbox: creating clone dir: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"clone", "--depth", strconv.Itoa(depth)}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repoURL, dir)

	if out, err := exec.CommandContext(cloneCtx, "git", args...).CombinedOutput(); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("sandbox: git clone failed: %w: %s", err, out)
	}

	if commitSHA != "" {
		checkout := exec.CommandContext(cloneCtx, "git", "-C", dir, "checkout", commitSHA)
		if out, err := checkout.CombinedOutput(); err != nil {
			os.RemoveAll(dir)
			return "", fmt.Errorf("sandbox: git checkout %s failed: %w: %s", commitSHA, err, out)
		}
	}

	return dir, nil
}

// applyPatch runs `git apply --check` then `git apply`, so a patch that
// cannot cleanly apply is reported as a patching-phase error before any
// file in the clone is touched.
func applyPatch(ctx context.Context, repoDir, diff string, timeout time.Duration) error {
	if diff == "" {
		return nil
	}

	patchFile, err := os.CreateTemp("", "fixpipeline-patch-*.diff")
	if err != nil {
		return fmt.Errorf("sandbox: writing patch file: %w", err)
	}
	defer os.Remove(patchFile.Name())
	if _, err := patchFile.WriteString(diff); err != nil {
		patchFile.Close()
		return fmt.Errorf("sandbox: writing patch file: %w", err)
	}
	patchFile.Close()

	applyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	check := exec.CommandContext(applyCtx, "git", "-C", repoDir, "apply", "--check", patchFile.Name())
	if out, err := check.CombinedOutput(); err != nil {
		return fmt.Errorf("sandbox: patch does not apply cleanly: %w: %s", err, out)
	}

	apply := exec.CommandContext(applyCtx, "git", "-C", repoDir, "apply", patchFile.Name())
	if out, err := apply.CombinedOutput(); err != nil {
		return fmt.Errorf("sandbox: git apply failed: %w: %s", err, out)
	}

	return nil
}
