// Package policy implements the fix pipeline's safety engine: path
// allow/deny rules, patch size limits, secret scanning, and additive danger
// scoring. Path, limit and secret checks are expressed as a small embedded
// Rego module evaluated through github.com/open-policy-agent/opa/rego, with
// the policy's path globs, patch limits and secret patterns passed in as
// Rego input; danger scoring is computed in Go from DangerConfig, and this
// package retains ownership of the PolicyDecision struct and violation
// codes.
package policy

// PathRules restricts which files a plan or patch may touch.
type PathRules struct {
	Allowed   []string `yaml:"allowed" json:"allowed"`
	Forbidden []string `yaml:"forbidden" json:"forbidden"`
}

// PatchLimits bounds the size of a generated patch.
type PatchLimits struct {
	MaxFiles        int `yaml:"max_files" json:"max_files"`
	MaxLinesAdded   int `yaml:"max_lines_added" json:"max_lines_added"`
	MaxLinesRemoved int `yaml:"max_lines_removed" json:"max_lines_removed"`
	MaxDiffBytes    int `yaml:"max_diff_bytes" json:"max_diff_bytes"`
}

// SecretRules holds regex patterns that must never appear in a patch.
type SecretRules struct {
	ForbiddenPatterns []string `yaml:"forbidden_patterns" json:"forbidden_patterns"`
}

// DangerConfig configures the additive danger-scoring table from §4.2.
type DangerConfig struct {
	SafeMax int `yaml:"safe_max" json:"safe_max"`

	// PathRiskWeights maps a glob pattern to the weight contributed when a
	// touched/target file matches it (e.g. "infra/**" -> 10).
	PathRiskWeights map[string]int `yaml:"path_risk_weights" json:"path_risk_weights"`

	// FileCountThreshold/Weight: files_changed above the threshold add
	// Weight per file over the threshold.
	FileCountThreshold int `yaml:"file_count_threshold" json:"file_count_threshold"`
	FileCountWeight    int `yaml:"file_count_weight" json:"file_count_weight"`

	// LinesTouchedThreshold/Weight: (lines_added+lines_removed) above the
	// threshold adds Weight per line over the threshold.
	LinesTouchedThreshold int `yaml:"lines_touched_threshold" json:"lines_touched_threshold"`
	LinesTouchedWeight    int `yaml:"lines_touched_weight" json:"lines_touched_weight"`

	// CategoryRiskWeights maps a fix category to a fixed weight.
	CategoryRiskWeights map[string]int `yaml:"category_risk_weights" json:"category_risk_weights"`

	// SecretRiskWeight is added once if any secret pattern matched (on top
	// of the BLOCK violation the match also produces).
	SecretRiskWeight int `yaml:"secret_risk_weight" json:"secret_risk_weight"`
}

// SafetyPolicy is the immutable configuration the policy engine evaluates
// against. A policy may carry named profiles, picked with ResolveProfile.
// cmd/fixpipeline resolves the configured default profile once at startup
// and builds one engine from it; there is no per-repo or per-run profile
// selection, and a run stores the engine's decisions, not the policy.
type SafetyPolicy struct {
	Profile     string                  `yaml:"profile" json:"profile"`
	Paths       PathRules               `yaml:"paths" json:"paths"`
	PatchLimits PatchLimits             `yaml:"patch_limits" json:"patch_limits"`
	Secrets     SecretRules             `yaml:"secrets" json:"secrets"`
	Danger      DangerConfig            `yaml:"danger" json:"danger"`
	Profiles    map[string]SafetyPolicy `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// ResolveProfile returns the named profile's policy if present, else the
// receiver itself. Mirrors the teacher's simple map-lookup-with-fallback
// pattern for filter/profile resolution.
func (p SafetyPolicy) ResolveProfile(name string) SafetyPolicy {
	if name == "" {
		return p
	}
	if profile, ok := p.Profiles[name]; ok {
		return profile
	}
	return p
}

// Severity is a policy violation's severity level.
type Severity string

const (
	SeverityWarn  Severity = "WARN"
	SeverityBlock Severity = "BLOCK"
)

// Violation is one entry produced by evaluate_plan/evaluate_patch.
type Violation struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	FilePath string   `json:"file_path,omitempty"`
}

// DangerReason is one additive contribution to a PolicyDecision's
// danger_score.
type DangerReason struct {
	Code    string `json:"code"`
	Weight  int    `json:"weight"`
	Message string `json:"message"`
}

// PRLabel classifies a decision for downstream reviewers.
type PRLabel string

const (
	PRLabelSafe        PRLabel = "safe"
	PRLabelNeedsReview PRLabel = "needs-review"
)

// PolicyDecision is the result of evaluating a plan or a patch.
// Invariant: Allowed == false iff there exists a violation with
// severity BLOCK. Invariant: PRLabel == "safe" iff Allowed and
// DangerScore <= policy.Danger.SafeMax.
type PolicyDecision struct {
	Allowed       bool           `json:"allowed"`
	Violations    []Violation    `json:"violations"`
	DangerScore   int            `json:"danger_score"`
	DangerReasons []DangerReason `json:"danger_reasons"`
	PRLabel       PRLabel        `json:"pr_label"`
}

// PlanIntent describes a proposed fix plan's footprint, the input to
// evaluate_plan.
type PlanIntent struct {
	TargetFiles    []string `json:"target_files"`
	Category       string   `json:"category"`
	OperationTypes []string `json:"operation_types"`
}

func hasBlockViolation(violations []Violation) bool {
	for _, v := range violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

func labelFor(allowed bool, dangerScore, safeMax int) PRLabel {
	if allowed && dangerScore <= safeMax {
		return PRLabelSafe
	}
	return PRLabelNeedsReview
}
