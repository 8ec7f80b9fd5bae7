package policy

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/relayci/fixpipeline/pkg/diffutil"
)

//go:embed patch.rego
var patchRegoModule string

// Engine evaluates plans and patches against a SafetyPolicy.
type Engine struct {
	policy      SafetyPolicy
	violationsQ rego.PreparedEvalQuery
}

// NewEngine compiles the embedded Rego module once for the given policy.
func NewEngine(ctx context.Context, policy SafetyPolicy) (*Engine, error) {
	q, err := rego.New(
		rego.Query("data.fixpipeline.policy.violations"),
		rego.Module("patch.rego", patchRegoModule),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy module: %w", err)
	}
	return &Engine{policy: policy, violationsQ: q}, nil
}

func (e *Engine) policyInput() map[string]interface{} {
	return map[string]interface{}{
		"policy": map[string]interface{}{
			"paths": map[string]interface{}{
				"allowed":   e.policy.Paths.Allowed,
				"forbidden": e.policy.Paths.Forbidden,
			},
			"patch_limits": map[string]interface{}{
				"max_files":         e.policy.PatchLimits.MaxFiles,
				"max_lines_added":   e.policy.PatchLimits.MaxLinesAdded,
				"max_lines_removed": e.policy.PatchLimits.MaxLinesRemoved,
				"max_diff_bytes":    e.policy.PatchLimits.MaxDiffBytes,
			},
			"secrets": map[string]interface{}{
				"forbidden_patterns": e.policy.Secrets.ForbiddenPatterns,
			},
		},
	}
}

func (e *Engine) evalViolations(ctx context.Context, input map[string]interface{}) ([]Violation, error) {
	results, err := e.violationsQ.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, nil
	}

	violations := make([]Violation, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		v := Violation{
			Code:     toString(m["code"]),
			Severity: Severity(toString(m["severity"])),
			Message:  toString(m["message"]),
			FilePath: toString(m["file_path"]),
		}
		violations = append(violations, v)
	}
	return violations, nil
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// EvaluatePlan checks a proposed fix plan's footprint against the path
// rules and computes its danger score.
func (e *Engine) EvaluatePlan(ctx context.Context, intent PlanIntent) (PolicyDecision, error) {
	input := e.policyInput()
	input["mode"] = "plan"
	input["target_files"] = intent.TargetFiles
	input["category"] = intent.Category
	input["operation_types"] = intent.OperationTypes

	violations, err := e.evalViolations(ctx, input)
	if err != nil {
		return PolicyDecision{}, err
	}

	dangerScore, reasons := scorePlanIntent(intent, e.policy.Danger)
	allowed := !hasBlockViolation(violations)

	return PolicyDecision{
		Allowed:       allowed,
		Violations:    violations,
		DangerScore:   dangerScore,
		DangerReasons: reasons,
		PRLabel:       labelFor(allowed, dangerScore, e.policy.Danger.SafeMax),
	}, nil
}

// EvaluatePatch parses diffText via pkg/diffutil, checks touched paths and
// size limits, scans for forbidden secret patterns, and computes the
// patch's danger score.
func (e *Engine) EvaluatePatch(ctx context.Context, diffText string) (PolicyDecision, error) {
	parsed, err := diffutil.Parse(diffText)
	if err != nil {
		return PolicyDecision{}, fmt.Errorf("failed to parse patch for policy evaluation: %w", err)
	}

	files := make([]map[string]interface{}, 0, len(parsed.Files))
	for _, f := range parsed.Files {
		files = append(files, map[string]interface{}{
			"path":          f.EffectivePath(),
			"lines_added":   f.LinesAdded,
			"lines_removed": f.LinesRemoved,
		})
	}

	input := e.policyInput()
	input["mode"] = "patch"
	input["files"] = files
	input["total_files"] = len(parsed.Files)
	input["total_lines_added"] = parsed.TotalLinesAdded
	input["total_lines_removed"] = parsed.TotalLinesRemoved
	input["diff_bytes"] = parsed.DiffBytes
	input["diff_text"] = diffText

	violations, err := e.evalViolations(ctx, input)
	if err != nil {
		return PolicyDecision{}, err
	}

	dangerScore, reasons := scorePatch(parsed, diffText, e.policy.Danger, e.policy.Secrets)
	allowed := !hasBlockViolation(violations)

	return PolicyDecision{
		Allowed:       allowed,
		Violations:    violations,
		DangerScore:   dangerScore,
		DangerReasons: reasons,
		PRLabel:       labelFor(allowed, dangerScore, e.policy.Danger.SafeMax),
	}, nil
}

// scorePlanIntent implements the additive danger-scoring table from §4.2
// for a plan's target-file footprint: path-risk and category-risk only,
// since a plan has no line counts yet.
func scorePlanIntent(intent PlanIntent, cfg DangerConfig) (int, []DangerReason) {
	var total int
	var reasons []DangerReason

	for _, f := range intent.TargetFiles {
		if weight, reason, ok := pathRiskFor(f, cfg); ok {
			total += weight
			reasons = append(reasons, reason)
		}
	}

	if weight, ok := cfg.CategoryRiskWeights[intent.Category]; ok && weight > 0 {
		total += weight
		reasons = append(reasons, DangerReason{
			Code:    "category-risk",
			Weight:  weight,
			Message: fmt.Sprintf("category %q carries elevated risk", intent.Category),
		})
	}

	return total, reasons
}

// scorePatch implements the full additive danger-scoring table from §4.2
// for a generated patch: path-risk, file-count, lines-touched, and
// secret-risk. Category risk is intentionally omitted here, since a patch
// carries no category of its own (the plan that produced it does).
func scorePatch(parsed *diffutil.ParsedDiff, diffText string, cfg DangerConfig, secrets SecretRules) (int, []DangerReason) {
	var total int
	var reasons []DangerReason

	for _, f := range parsed.Files {
		if weight, reason, ok := pathRiskFor(f.EffectivePath(), cfg); ok {
			total += weight
			reasons = append(reasons, reason)
		}
	}

	if cfg.FileCountWeight > 0 && len(parsed.Files) > cfg.FileCountThreshold {
		over := len(parsed.Files) - cfg.FileCountThreshold
		weight := over * cfg.FileCountWeight
		total += weight
		reasons = append(reasons, DangerReason{
			Code:    "file-count",
			Weight:  weight,
			Message: fmt.Sprintf("patch touches %d files, %d over the threshold of %d", len(parsed.Files), over, cfg.FileCountThreshold),
		})
	}

	linesTouched := parsed.TotalLinesAdded + parsed.TotalLinesRemoved
	if cfg.LinesTouchedWeight > 0 && linesTouched > cfg.LinesTouchedThreshold {
		over := linesTouched - cfg.LinesTouchedThreshold
		weight := over * cfg.LinesTouchedWeight
		total += weight
		reasons = append(reasons, DangerReason{
			Code:    "lines-touched",
			Weight:  weight,
			Message: fmt.Sprintf("patch touches %d lines, %d over the threshold of %d", linesTouched, over, cfg.LinesTouchedThreshold),
		})
	}

	var added strings.Builder
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++ ") {
			added.WriteString(line[1:] + "\n")
		}
	}
	if cfg.SecretRiskWeight > 0 && matchesAnySecretPattern(added.String(), secrets.ForbiddenPatterns) {
		total += cfg.SecretRiskWeight
		reasons = append(reasons, DangerReason{
			Code:    "secret-risk",
			Weight:  cfg.SecretRiskWeight,
			Message: "patch contains a secret-like pattern in its additions",
		})
	}

	return total, reasons
}

func matchesAnySecretPattern(diffText string, patterns []string) bool {
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(diffText) {
			return true
		}
	}
	return false
}

// pathRiskFor reports the path-risk weight contributed by a single file,
// if any of the policy's weighted globs match it.
func pathRiskFor(path string, cfg DangerConfig) (int, DangerReason, bool) {
	best := 0
	var matched string
	for pattern, weight := range cfg.PathRiskWeights {
		if globMatch(pattern, path) && weight > best {
			best = weight
			matched = pattern
		}
	}
	if best == 0 {
		return 0, DangerReason{}, false
	}
	return best, DangerReason{
		Code:    "path-risk",
		Weight:  best,
		Message: fmt.Sprintf("%s matches sensitive path pattern %q", path, matched),
	}, true
}
