package orchestrator

import (
	"context"
	"io/fs"

	"github.com/relayci/fixpipeline/pkg/fixcontext"
)

// ContextBuilder loads or constructs the FailureContextBundle and RCA
// result for one run (spec §4.10 step 1). Out of this package's scope:
// it owns log fetching, stack-trace parsing, and the classifier/RCA
// engine wiring that produced pkg/fixcontext and pkg/rca.
type ContextBuilder interface {
	Build(ctx context.Context, req Request) (fixcontext.Bundle, error)
}

// RepoCheckout is a cloned repository made available for patch generation
// and the defense-in-depth file-list check (step 5/6). Files is the
// full repo-relative path list used to re-run adapter selection; FS is a
// read-only view handed to patch.Generate.
type RepoCheckout struct {
	FS          fs.FS
	Files       []string
	LocalPath   string
}

// RepoCloner clones a run's repo at a commit (step 5). pkg/gitrepo's
// Cloner implements it by running git itself, in the same way as
// pkg/sandbox's unexported clone helper.
type RepoCloner interface {
	Clone(ctx context.Context, repoURL, branch, commitSHA string) (RepoCheckout, error)
	Cleanup(checkout RepoCheckout) error
}

// PRCreator opens the pull request for an accepted, validated fix (step
// 12). Out of this package's scope: provider-specific PR API clients.
type PRCreator interface {
	CreatePR(ctx context.Context, req PRRequest) (url string, err error)
}

// PRRequest bundles what a PR creator needs to open the pull request.
type PRRequest struct {
	RepoURL   string
	Branch    string
	CommitSHA string
	Diff      string
	Title     string
	Body      string
}
