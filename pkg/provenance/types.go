// Package provenance builds the immutable end-of-run ProvenanceArtifact
// (spec §3) and redacts it before persistence, per the redaction invariant
// at spec.md:258: no field inside a built artifact may match any pattern
// in policy.secrets.forbidden_patterns.
package provenance

import "time"

// TimelineEntry records one stage transition's timing and outcome.
type TimelineEntry struct {
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Detail    string    `json:"detail,omitempty"`
}

// Evidence is one piece of supporting material a stage attached to the
// run (a log excerpt, a matched rule, a scan finding).
type Evidence struct {
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

// DiffStats mirrors pkg/patch.Stats, copied rather than imported so this
// package's JSON shape doesn't change if the patch package's internal
// struct does.
type DiffStats struct {
	FilesChanged      int `json:"files_changed"`
	TotalFiles        int `json:"total_files"`
	TotalLinesAdded   int `json:"total_lines_added"`
	TotalLinesRemoved int `json:"total_lines_removed"`
	DiffBytes         int `json:"diff_bytes"`
}

// Artifact is spec §3's ProvenanceArtifact entity: {run_id, failure_id,
// repo, timestamps, status, adapter, plan, policy, diff_stats, scans,
// validation, evidence[], timeline[]}.
type Artifact struct {
	RunID     string    `json:"run_id"`
	FailureID string    `json:"failure_id"`
	Repo      string    `json:"repo"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Status    string    `json:"status"`

	Adapter string `json:"adapter"`

	PlanCategory    string   `json:"plan_category"`
	PlanConfidence  float64  `json:"plan_confidence"`
	PlanFiles       []string `json:"plan_files"`
	PlanRootCause   string   `json:"plan_root_cause"`
	ConsensusState  string   `json:"consensus_state"`
	ConsensusReason string   `json:"consensus_reason,omitempty"`

	PolicyAllowed       bool     `json:"policy_allowed"`
	PolicyDangerScore   int      `json:"policy_danger_score"`
	PolicyViolationCount int     `json:"policy_violation_count"`
	PolicyPRLabel       string   `json:"policy_pr_label,omitempty"`

	DiffStats DiffStats `json:"diff_stats"`

	ValidationStatus   string `json:"validation_status,omitempty"`
	ValidationTestsRun int    `json:"validation_tests_run,omitempty"`
	ValidationPassed   int    `json:"validation_tests_passed,omitempty"`
	ValidationFailed   int    `json:"validation_tests_failed,omitempty"`

	ScansGitleaksVerdict string `json:"scans_gitleaks_verdict,omitempty"`
	ScansTrivyVerdict    string `json:"scans_trivy_verdict,omitempty"`

	PRURL string `json:"pr_url,omitempty"`

	Evidence []Evidence      `json:"evidence"`
	Timeline []TimelineEntry `json:"timeline"`
}
