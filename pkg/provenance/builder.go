package provenance

import (
	"time"

	"github.com/relayci/fixpipeline/pkg/consensus"
	"github.com/relayci/fixpipeline/pkg/patch"
	"github.com/relayci/fixpipeline/pkg/plan"
	"github.com/relayci/fixpipeline/pkg/policy"
	"github.com/relayci/fixpipeline/pkg/sandbox"
)

// Builder accumulates a run's stage outcomes and produces the final
// Artifact. The orchestrator calls the With* methods as each stage
// completes and calls Build exactly once, on any exit path.
type Builder struct {
	a Artifact
}

// NewBuilder starts a fresh artifact for one run.
func NewBuilder(runID, failureID, repo string, startedAt time.Time) *Builder {
	return &Builder{a: Artifact{
		RunID:     runID,
		FailureID: failureID,
		Repo:      repo,
		StartedAt: startedAt,
	}}
}

func (b *Builder) WithAdapter(name string) *Builder {
	b.a.Adapter = name
	return b
}

func (b *Builder) WithPlan(p plan.FixPlan) *Builder {
	b.a.PlanCategory = string(p.Category)
	b.a.PlanConfidence = p.Confidence
	b.a.PlanFiles = append([]string(nil), p.Files...)
	b.a.PlanRootCause = p.RootCause
	return b
}

func (b *Builder) WithConsensus(r consensus.Result) *Builder {
	b.a.ConsensusState = string(r.State)
	b.a.ConsensusReason = r.Reason
	return b
}

func (b *Builder) WithPolicyDecision(d policy.PolicyDecision) *Builder {
	b.a.PolicyAllowed = d.Allowed
	b.a.PolicyDangerScore = d.DangerScore
	b.a.PolicyViolationCount = len(d.Violations)
	b.a.PolicyPRLabel = string(d.PRLabel)
	return b
}

func (b *Builder) WithDiffStats(s patch.Stats) *Builder {
	b.a.DiffStats = DiffStats{
		FilesChanged:      s.FilesChanged,
		TotalFiles:        s.TotalFiles,
		TotalLinesAdded:   s.TotalLinesAdded,
		TotalLinesRemoved: s.TotalLinesRemoved,
		DiffBytes:         s.DiffBytes,
	}
	return b
}

func (b *Builder) WithValidation(r sandbox.Result) *Builder {
	b.a.ValidationStatus = string(r.Status)
	b.a.ValidationTestsRun = r.Tests.Total
	b.a.ValidationPassed = r.Tests.Passed
	b.a.ValidationFailed = r.Tests.Failed
	if r.Scans.Gitleaks != nil {
		b.a.ScansGitleaksVerdict = string(r.Scans.Gitleaks.Verdict)
	}
	if r.Scans.Trivy != nil {
		b.a.ScansTrivyVerdict = string(r.Scans.Trivy.Verdict)
	}
	return b
}

func (b *Builder) WithPRURL(url string) *Builder {
	b.a.PRURL = url
	return b
}

func (b *Builder) AddEvidence(source, summary string) *Builder {
	b.a.Evidence = append(b.a.Evidence, Evidence{Source: source, Summary: summary})
	return b
}

func (b *Builder) AddTimelineEntry(stage, status string, startedAt, endedAt time.Time, detail string) *Builder {
	b.a.Timeline = append(b.a.Timeline, TimelineEntry{
		Stage: stage, Status: status, StartedAt: startedAt, EndedAt: endedAt, Detail: detail,
	})
	return b
}

// Build finalizes the artifact with a terminal status and end timestamp.
// The caller is still responsible for running it through a Redactor
// before persisting.
func (b *Builder) Build(status string, endedAt time.Time) Artifact {
	b.a.Status = status
	b.a.EndedAt = endedAt
	return b.a
}
