// Package gitrepo implements orchestrator.RepoCloner: a shallow git
// checkout onto local disk, in the same shell-out-to-git style
// pkg/sandbox uses for its own validation-time clone.
package gitrepo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/relayci/fixpipeline/pkg/orchestrator"
)

// Cloner is the default, filesystem-backed RepoCloner.
type Cloner struct {
	depth   int
	timeout time.Duration
}

// New builds a Cloner. depth bounds the clone history (0 defaults to 50,
// matching config.SandboxConfig's own default); timeout bounds the clone
// and checkout commands together.
func New(depth int, timeout time.Duration) *Cloner {
	if depth <= 0 {
		depth = 50
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Cloner{depth: depth, timeout: timeout}
}

// Clone shallow-clones repoURL at branch, checks out commitSHA, and
// returns a RepoCheckout rooted at the clone directory. The caller must
// call Cleanup once done with the checkout.
func (c *Cloner) Clone(ctx context.Context, repoURL, branch, commitSHA string) (orchestrator.RepoCheckout, error) {
	dir, err := os.MkdirTemp("", "fixpipeline-clone-*")
	if err != nil {
		return orchestrator.RepoCheckout{}, fmt.Errorf("gitrepo: creating clone dir: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"clone", "--depth", strconv.Itoa(c.depth)}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repoURL, dir)

	if out, err := exec.CommandContext(cloneCtx, "git", args...).CombinedOutput(); err != nil {
		os.RemoveAll(dir)
		return orchestrator.RepoCheckout{}, fmt.Errorf("gitrepo: git clone failed: %w: %s", err, out)
	}

	if commitSHA != "" {
		checkout := exec.CommandContext(cloneCtx, "git", "-C", dir, "checkout", commitSHA)
		if out, err := checkout.CombinedOutput(); err != nil {
			os.RemoveAll(dir)
			return orchestrator.RepoCheckout{}, fmt.Errorf("gitrepo: git checkout %s failed: %w: %s", commitSHA, err, out)
		}
	}

	files, err := listFiles(dir)
	if err != nil {
		os.RemoveAll(dir)
		return orchestrator.RepoCheckout{}, fmt.Errorf("gitrepo: listing clone contents: %w", err)
	}

	return orchestrator.RepoCheckout{
		FS:        os.DirFS(dir),
		Files:     files,
		LocalPath: dir,
	}, nil
}

// Cleanup removes the clone directory.
func (c *Cloner) Cleanup(checkout orchestrator.RepoCheckout) error {
	if checkout.LocalPath == "" {
		return nil
	}
	if err := os.RemoveAll(checkout.LocalPath); err != nil {
		return fmt.Errorf("gitrepo: cleanup: %w", err)
	}
	return nil
}

// listFiles walks dir and returns every regular file's path relative to
// dir, skipping .git, for adapter re-selection against the full checkout.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(rel, ".git"+string(filepath.Separator)) {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
