// Package prclient implements orchestrator.PRCreator against the GitHub
// REST API: it pushes the validated patch to a new branch with the git
// CLI (the same shell-out idiom pkg/gitrepo and pkg/sandbox use for
// cloning) and then opens the pull request through go-github.
package prclient

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"

	"github.com/relayci/fixpipeline/pkg/orchestrator"
)

// Config configures the GitHub-backed PR creator.
type Config struct {
	// Token is a GitHub personal access token or installation token with
	// repo:write scope, used both for the git push over HTTPS and for
	// the PullRequests.Create API call.
	Token string

	// GitUserName/GitUserEmail are the commit author identity for the
	// fix commit.
	GitUserName  string
	GitUserEmail string

	// BranchPrefix namespaces the branches this client creates, so they
	// are easy to find and garbage-collect.
	BranchPrefix string

	CloneTimeout time.Duration
	PushTimeout  time.Duration
}

// Client is the default, GitHub-backed PRCreator.
type Client struct {
	cfg Config
	gh  *github.Client
}

// New builds a Client. An empty Token is allowed at construction time but
// every CreatePR call will fail authenticating against the git remote and
// the GitHub API.
func New(cfg Config) *Client {
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "fixpipeline"
	}
	if cfg.GitUserName == "" {
		cfg.GitUserName = "fixpipeline-bot"
	}
	if cfg.GitUserEmail == "" {
		cfg.GitUserEmail = "fixpipeline-bot@users.noreply.github.com"
	}
	if cfg.CloneTimeout <= 0 {
		cfg.CloneTimeout = 120 * time.Second
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 60 * time.Second
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := oauth2.NewClient(context.Background(), ts)

	return &Client{cfg: cfg, gh: github.NewClient(httpClient)}
}

// CreatePR implements orchestrator.PRCreator: it clones req.RepoURL at
// req.Branch, commits req.Diff onto a fresh branch, pushes it, and opens
// the pull request, returning its HTML URL.
func (c *Client) CreatePR(ctx context.Context, req orchestrator.PRRequest) (string, error) {
	owner, repo, err := ownerRepoFromURL(req.RepoURL)
	if err != nil {
		return "", fmt.Errorf("prclient: %w", err)
	}

	branchName := fmt.Sprintf("%s/%s", c.cfg.BranchPrefix, shortSHA(req.CommitSHA))

	// Create the branch ref server-side first (mirroring the GetRef/
	// CreateRef pattern GitHub-integration clients use to open a working
	// branch), so the push below is a plain fast-forward onto it.
	baseRef, _, err := c.gh.Git.GetRef(ctx, owner, repo, "heads/"+req.Branch)
	if err != nil {
		return "", fmt.Errorf("prclient: get base ref: %w", err)
	}
	if _, _, err := c.gh.Git.CreateRef(ctx, owner, repo, &github.Reference{
		Ref:    github.Ptr("refs/heads/" + branchName),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	}); err != nil {
		return "", fmt.Errorf("prclient: create branch ref: %w", err)
	}

	dir, err := os.MkdirTemp("", "fixpipeline-pr-*")
	if err != nil {
		return "", fmt.Errorf("prclient: creating work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	authedURL, err := withToken(req.RepoURL, c.cfg.Token)
	if err != nil {
		return "", fmt.Errorf("prclient: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, c.cfg.CloneTimeout)
	defer cancel()

	if err := c.run(cloneCtx, "", "git", "clone", "--depth", "1", "--branch", branchName, authedURL, dir); err != nil {
		return "", fmt.Errorf("prclient: clone: %w", err)
	}
	if err := c.run(cloneCtx, dir, "git", "config", "user.name", c.cfg.GitUserName); err != nil {
		return "", fmt.Errorf("prclient: configure git identity: %w", err)
	}
	if err := c.run(cloneCtx, dir, "git", "config", "user.email", c.cfg.GitUserEmail); err != nil {
		return "", fmt.Errorf("prclient: configure git identity: %w", err)
	}

	patchFile, err := os.CreateTemp("", "fixpipeline-pr-*.diff")
	if err != nil {
		return "", fmt.Errorf("prclient: writing patch file: %w", err)
	}
	defer os.Remove(patchFile.Name())
	if _, err := patchFile.WriteString(req.Diff); err != nil {
		patchFile.Close()
		return "", fmt.Errorf("prclient: writing patch file: %w", err)
	}
	patchFile.Close()

	if err := c.run(cloneCtx, dir, "git", "apply", patchFile.Name()); err != nil {
		return "", fmt.Errorf("prclient: apply patch: %w", err)
	}
	if err := c.run(cloneCtx, dir, "git", "add", "-A"); err != nil {
		return "", fmt.Errorf("prclient: stage changes: %w", err)
	}
	if err := c.run(cloneCtx, dir, "git", "commit", "-m", req.Title); err != nil {
		return "", fmt.Errorf("prclient: commit: %w", err)
	}

	pushCtx, pushCancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
	defer pushCancel()
	if err := c.run(pushCtx, dir, "git", "push", "origin", branchName); err != nil {
		return "", fmt.Errorf("prclient: push: %w", err)
	}

	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(req.Title),
		Head:  github.Ptr(branchName),
		Base:  github.Ptr(req.Branch),
		Body:  github.Ptr(req.Body),
	})
	if err != nil {
		return "", fmt.Errorf("prclient: creating pull request: %w", err)
	}

	return pr.GetHTMLURL(), nil
}

func (c *Client) run(ctx context.Context, dir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, out)
	}
	return nil
}

// withToken rewrites an HTTPS GitHub URL to embed an x-access-token
// credential, so the git CLI can push without an interactive prompt or an
// on-disk credential helper.
func withToken(repoURL, token string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("parsing repo URL: %w", err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("unsupported repo URL scheme %q, want https", u.Scheme)
	}
	u.User = url.UserPassword("x-access-token", token)
	return u.String(), nil
}

// ownerRepoFromURL extracts "owner", "repo" from a GitHub HTTPS URL such
// as https://github.com/owner/repo or https://github.com/owner/repo.git.
func ownerRepoFromURL(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing repo URL: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("repo URL %q does not contain an owner/repo path", repoURL)
	}
	owner = parts[0]
	repo = strings.TrimSuffix(parts[1], ".git")
	return owner, repo, nil
}

func shortSHA(sha string) string {
	if len(sha) <= 8 {
		return sha
	}
	return sha[:8]
}
