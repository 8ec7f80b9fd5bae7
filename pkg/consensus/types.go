// Package consensus implements C9, the consensus coordinator: it takes
// the planner's FixPlan, the policy engine's verdict on that plan, and an
// independent critic opinion, and decides accept/reject under a 2-of-3
// quorum with an unconditional safety veto (Open Question (a), recorded
// in DESIGN.md).
package consensus

import "github.com/relayci/fixpipeline/pkg/plan"

// Role is one of the three consensus participants.
type Role string

const (
	RolePlanner Role = "planner"
	RoleCritic  Role = "critic"
	RoleSafety  Role = "safety"
)

// State is Result.State: "accepted" or one of the explicit rejection
// reasons from spec §10's Consensus glossary entry.
type State string

const (
	StateAccepted                 State = "accepted"
	StateRejectedSafetyVeto       State = "rejected_safety_veto"
	StateRejectedLowAgreement     State = "rejected_low_agreement"
	StateRejectedUnsupportedFiles State = "rejected_unsupported_files"
	StateRejectedPlannerMissing   State = "rejected_planner_missing"
)

// Candidate records one role's vote for the persisted consensus_json blob.
type Candidate struct {
	Role       Role    `json:"role"`
	Approved   bool    `json:"approved"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Result is C9's output, persisted on FixPipelineRun.consensus_json.
type Result struct {
	State      State       `json:"state"`
	Reason     string      `json:"reason"`
	Candidates []Candidate `json:"candidates"`
}

// Accepted reports whether the consensus reached agreement.
func (r Result) Accepted() bool { return r.State == StateAccepted }

// Request bundles the three roles' inputs for one Decide call.
type Request struct {
	// PlannerPlan is the candidate fix plan under review.
	PlannerPlan plan.FixPlan
	// PlannerApproved is false only when plan generation itself failed
	// upstream (no plan to evaluate at all).
	PlannerApproved bool

	// CriticPlan is an independently generated second opinion over the
	// same failure context, built by calling a plan.Generator a second
	// time (typically the LLM generator even when the primary plan came
	// from the deterministic mock, or vice versa).
	CriticPlan plan.FixPlan
	// CriticAvailable is false when no critic opinion could be produced
	// (e.g. the LLM call itself failed) — this is not itself a veto, but
	// folds into the agreement score as an unanimous non-approval.
	CriticAvailable bool

	// SafetyAllowed is policy.PolicyDecision.Allowed for PlannerPlan's
	// intent. false here always produces rejected_safety_veto.
	SafetyAllowed bool

	// SupportedFiles restricts which files the selected adapter actually
	// supports touching (its canonical dependency files, or the rca
	// engine's affected-file list); a plan touching anything outside it
	// fails the consensus regardless of vote counts.
	SupportedFiles []string
}
