// Package guardrail implements the orchestrator's step-9 check on the
// assembled fix: file scope, destructive commands, and diff syntax. It
// runs after the policy engine's evaluate_patch (which already owns size
// limits and secret patterns), as a second, narrower net scoped to the
// patterns that are dangerous regardless of any policy profile.
package guardrail

import (
	"regexp"

	"github.com/relayci/fixpipeline/pkg/diffutil"
)

// Severity mirrors the originating guardrail's BLOCK/WARN split.
type Severity string

const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
)

// Violation is one rule failure.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
}

// Result is the outcome of Check.
type Result struct {
	Passed     bool
	Violations []Violation
}

// Config bounds the checks. Zero value uses the defaults below.
type Config struct {
	MaxFiles int
}

// DefaultConfig mirrors the originating guardrail's defaults.
var DefaultConfig = Config{MaxFiles: 3}

var destructivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+-rf?\s+[/~]`),
	regexp.MustCompile(`\brmdir\s+[/~]`),
	regexp.MustCompile(`(?i)DROP\s+DATABASE`),
	regexp.MustCompile(`(?i)DROP\s+TABLE`),
	regexp.MustCompile(`(?i)DELETE\s+FROM\s+\w+\s*;?\s*$`),
	regexp.MustCompile(`(?i)TRUNCATE\s+TABLE`),
	regexp.MustCompile(`(?i)os\.remove\s*\(`),
	regexp.MustCompile(`(?i)shutil\.rmtree\s*\(`),
}

// Check validates a generated diff against the fixed guardrail rule set.
// cfg.MaxFiles of zero uses DefaultConfig.MaxFiles.
func Check(diffText string, cfg Config) Result {
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = DefaultConfig.MaxFiles
	}

	var violations []Violation

	parsed, err := diffutil.Parse(diffText)
	if err != nil {
		return Result{
			Passed: false,
			Violations: []Violation{{
				Rule: "diff_syntax", Severity: SeverityBlock,
				Message: "diff failed to parse: " + err.Error(),
			}},
		}
	}

	paths := parsed.Paths()
	if len(paths) > cfg.MaxFiles {
		violations = append(violations, Violation{
			Rule: "file_scope", Severity: SeverityBlock,
			Message: "fix touches more files than the configured limit",
		})
	}

	for _, f := range parsed.Files {
		if isFileDeletion(f) {
			violations = append(violations, Violation{
				Rule: "file_deletion", Severity: SeverityBlock,
				Message: "fix deletes " + f.EffectivePath(),
			})
		}
	}

	for _, re := range destructivePatterns {
		if re.MatchString(diffText) {
			violations = append(violations, Violation{
				Rule: "destructive_command", Severity: SeverityBlock,
				Message: "diff contains a destructive command pattern",
			})
			break
		}
	}

	blocked := false
	for _, v := range violations {
		if v.Severity == SeverityBlock {
			blocked = true
			break
		}
	}
	return Result{Passed: !blocked, Violations: violations}
}

func isFileDeletion(f diffutil.FileDiff) bool {
	return f.NewPath == "dev/null" || f.NewPath == "/dev/null"
}
