// Package orchestrator implements C10, the pipeline orchestrator: the
// FixPipelineRun state machine described in spec.md §4.10. It composes
// every other package built for this run (adapter selection, plan
// generation, consensus, policy, patch generation, guardrails, sandbox
// validation, provenance) behind the collaborator interfaces this package
// still needs from outside its scope (context building, repo cloning, PR
// creation).
package orchestrator

import (
	"time"

	"github.com/relayci/fixpipeline/pkg/adapter"
	"github.com/relayci/fixpipeline/pkg/consensus"
	"github.com/relayci/fixpipeline/pkg/fixcontext"
	"github.com/relayci/fixpipeline/pkg/patch"
	"github.com/relayci/fixpipeline/pkg/plan"
	"github.com/relayci/fixpipeline/pkg/policy"
	"github.com/relayci/fixpipeline/pkg/rca"
	"github.com/relayci/fixpipeline/pkg/sandbox"
)

// Status is spec §4.10's FixPipelineRun.status.
type Status string

const (
	StatusPending            Status = "pending"
	StatusAdapterSelected    Status = "adapter_selected"
	StatusPlanReady          Status = "plan_ready"
	StatusPatchReady         Status = "patch_ready"
	StatusValidationPassed   Status = "validation_passed"
	StatusPRCreated          Status = "pr_created"
	StatusPlanBlocked        Status = "plan_blocked"
	StatusPatchBlocked       Status = "patch_blocked"
	StatusValidationFailed   Status = "validation_failed"
	StatusPRFailed           Status = "pr_failed"
)

// Terminal reports whether a status ends the run (the states marked * in
// the spec's state diagram).
func (s Status) Terminal() bool {
	switch s {
	case StatusPRCreated, StatusPlanBlocked, StatusPatchBlocked, StatusValidationFailed, StatusPRFailed:
		return true
	default:
		return false
	}
}

// Request carries one pipeline event's identity into a run. Built from a
// normalized PipelineEvent by whatever ingests webhooks (out of this
// package's scope); EventID doubles as the idempotency key.
type Request struct {
	RunID     string
	EventID   string
	RunKey    string
	RepoURL   string
	Branch    string
	CommitSHA string
	LogText   string

	// Prior is the run as last persisted, supplied by the caller (the
	// concurrency governor/run store, per spec.md §4.11) on a retry.
	// Execute seeds AttemptCount/LastPRURL/PRStatus from it so step 11's
	// idempotent-PR-creation check still works across attempts.
	Prior *Run
}

// Run is the persisted FixPipelineRun aggregate (spec §3), mutated in
// place by Orchestrator.Execute. Callers are responsible for persisting
// it after Execute returns, and for passing back the prior state on a
// retry (the idempotent-PR-creation check in step 11 relies on
// LastPRURL/PRStatus already being populated from a previous attempt).
type Run struct {
	ID           string
	EventID      string
	RunKey       string
	RepoURL      string
	Branch       string
	CommitSHA    string
	Status       Status
	AttemptCount int
	BlockedReason string

	AdapterName string
	Detection   adapter.Detection

	Context fixcontext.Bundle
	RCA     rca.Result

	Plan             plan.FixPlan
	PlanPolicy       policy.PolicyDecision
	Consensus        consensus.Result

	PatchDiff   string
	PatchStats  patch.Stats
	PatchPolicy policy.PolicyDecision

	Validation sandbox.Result

	LastPRURL string
	PRStatus  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Timeline is a recorded stage transition, in the shape spec §4.10 asks
// for: "each step first records a timeline entry with started_at, then
// updates status, then executes the work, then writes the outcome".
type Timeline struct {
	Stage     string
	Status    string
	StartedAt time.Time
	EndedAt   time.Time
	Detail    string
}
