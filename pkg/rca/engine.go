package rca

import (
	"sort"
	"strings"

	"github.com/relayci/fixpipeline/pkg/classifier"
	"github.com/relayci/fixpipeline/pkg/fixcontext"
)

const (
	stackTraceRelevance  = 0.9
	baseChangedRelevance = 0.3
	relevanceCutoff      = 0.3
	similarityCutoff     = 0.3
	maxAffectedFiles     = 10
	maxAlternatives      = 3
)

var libraryPathMarkers = []string{
	"node_modules", "site-packages", "vendor", ".venv", "dist-packages",
	"/usr/lib", "/usr/local/lib",
}

var categoryDescriptions = map[classifier.Category]string{
	classifier.CategoryInfrastructure: "Infrastructure issue detected (resource exhaustion or CI system failure)",
	classifier.CategoryDependency:     "Dependency issue detected (missing or incompatible package)",
	classifier.CategoryCode:           "Code error detected (type error, logic error, or bug)",
	classifier.CategoryConfiguration:  "Configuration issue detected (missing variable or invalid config)",
	classifier.CategoryTest:           "Test assertion failure (test logic or assertion issue)",
	classifier.CategoryFlaky:          "Potentially flaky failure (timeout or non-deterministic behavior)",
	classifier.CategorySecurity:       "Security scan failure (vulnerability detected)",
	classifier.CategoryUnknown:        "Unable to determine specific cause",
}

var categorySuggestedFixes = map[classifier.Category]string{
	classifier.CategoryInfrastructure: "Retry the job or check CI infrastructure status",
	classifier.CategoryDependency:     "Check package versions and update dependencies",
	classifier.CategoryCode:           "Review the error location and add proper error handling",
	classifier.CategoryConfiguration:  "Verify all required environment variables are set",
	classifier.CategoryTest:           "Review test assertions and expected values",
	classifier.CategoryFlaky:          "Consider adding retries or investigating timing issues",
	classifier.CategorySecurity:       "Review and remediate the security vulnerability",
}

var categoryFixPatterns = map[classifier.Category][]string{
	classifier.CategoryDependency: {
		"Run dependency update", "Pin dependency versions", "Clear dependency cache",
	},
	classifier.CategoryConfiguration: {
		"Add missing environment variable", "Update configuration file", "Verify secrets are available",
	},
	classifier.CategoryCode: {
		"Add null/undefined check", "Fix type mismatch", "Handle edge case",
	},
}

// Engine is the root-cause analysis engine (C5's RCA half).
type Engine struct {
	classifier *classifier.Classifier
	similarity SimilaritySearcher
}

// New builds an Engine. similarity may be nil, in which case
// SimilarIncidents is always empty.
func New(similarity SimilaritySearcher) *Engine {
	return &Engine{classifier: classifier.New(), similarity: similarity}
}

// Analyze classifies ctx and synthesizes root-cause hypotheses.
func (e *Engine) Analyze(ctx fixcontext.Bundle) Result {
	cls := e.classifier.Classify(ctx)
	affected := analyzeAffectedFiles(ctx, cls)
	similar := e.searchSimilarIncidents(ctx)
	primary, alternatives := generateHypotheses(ctx, cls, affected, similar)
	patterns := generateFixPatterns(cls, similar)

	return Result{
		Classification:        cls,
		PrimaryHypothesis:     primary,
		AlternativeHypotheses: alternatives,
		AffectedFiles:         affected,
		SimilarIncidents:      similar,
		SuggestedPatterns:     patterns,
	}
}

func analyzeAffectedFiles(ctx fixcontext.Bundle, cls classifier.Classification) []AffectedFile {
	changedByName := map[string]fixcontext.ChangedFile{}
	for _, f := range ctx.ChangedFiles {
		changedByName[f.Filename] = f
	}

	var affected []AffectedFile
	seen := map[string]bool{}

	for _, trace := range ctx.StackTraces {
		for _, frame := range trace.Frames {
			if frame.File == "" || isLibraryFile(frame.File) || seen[frame.File] {
				continue
			}
			seen[frame.File] = true
			_, recentlyChanged := changedByName[frame.File]
			affected = append(affected, AffectedFile{
				Filename:          frame.File,
				RelevanceScore:    stackTraceRelevance,
				Reason:            "Appears in stack trace",
				IsInStackTrace:    true,
				IsRecentlyChanged: recentlyChanged,
				SuggestedAction:   "Review error handling at this location",
			})
		}
	}

	for _, changed := range ctx.ChangedFiles {
		if seen[changed.Filename] {
			continue
		}
		relevance := calculateFileRelevance(changed.Filename, cls)
		if relevance <= relevanceCutoff {
			continue
		}
		affected = append(affected, AffectedFile{
			Filename:          changed.Filename,
			RelevanceScore:    relevance,
			Reason:            "Recently changed",
			IsRecentlyChanged: true,
			SuggestedAction:   suggestFileAction(changed.Filename, cls),
		})
	}

	sort.SliceStable(affected, func(i, j int) bool {
		return affected[i].RelevanceScore > affected[j].RelevanceScore
	})
	if len(affected) > maxAffectedFiles {
		affected = affected[:maxAffectedFiles]
	}
	return affected
}

func isLibraryFile(path string) bool {
	for _, marker := range libraryPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

func calculateFileRelevance(filename string, cls classifier.Classification) float64 {
	relevance := baseChangedRelevance
	switch cls.Category {
	case classifier.CategoryDependency:
		if containsAny(filename, "package.json", "requirements.txt", "Cargo.toml", "go.mod", "pyproject.toml", "pom.xml") {
			relevance += 0.5
		}
	case classifier.CategoryConfiguration:
		if containsAny(filename, ".env", "config", ".yml", ".yaml", ".json") {
			relevance += 0.4
		}
	case classifier.CategoryTest:
		if strings.Contains(strings.ToLower(filename), "test") {
			relevance += 0.4
		}
	}
	return relevance
}

func suggestFileAction(filename string, cls classifier.Classification) string {
	if cls.Category == classifier.CategoryDependency {
		return "Verify the dependency declared in " + filename + " resolves"
	}
	return "Review recent changes to " + filename
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (e *Engine) searchSimilarIncidents(ctx fixcontext.Bundle) []SimilarIncident {
	if e.similarity == nil {
		return nil
	}
	query := buildSimilarityQuery(ctx)
	results, err := e.similarity.Search(query, 5)
	if err != nil {
		return nil
	}
	var kept []SimilarIncident
	for _, r := range results {
		if r.SimilarityScore >= similarityCutoff {
			kept = append(kept, r)
		}
	}
	return kept
}

func buildSimilarityQuery(ctx fixcontext.Bundle) string {
	var parts []string
	for _, e := range ctx.Errors {
		parts = append(parts, e.Message)
	}
	for _, t := range ctx.StackTraces {
		parts = append(parts, t.ExceptionType+": "+t.Message)
	}
	for _, f := range ctx.ChangedFiles {
		parts = append(parts, f.Filename)
	}
	if ctx.CommitMessage != "" {
		parts = append(parts, ctx.CommitMessage)
	}
	return strings.Join(parts, "\n")
}

func generateHypotheses(ctx fixcontext.Bundle, cls classifier.Classification, affected []AffectedFile, similar []SimilarIncident) (Hypothesis, []Hypothesis) {
	var hypotheses []Hypothesis

	hypotheses = append(hypotheses, Hypothesis{
		Description:  describeHypothesis(ctx, cls, affected),
		Confidence:   cls.Confidence,
		Evidence:     gatherEvidence(ctx, cls),
		SuggestedFix: categorySuggestedFixes[cls.Category],
	})

	if len(similar) > 0 {
		best := similar[0]
		if best.RootCause != "" && best.SimilarityScore >= 0.7 {
			hypotheses = append(hypotheses, Hypothesis{
				Description: "Similar to past incident: " + best.RootCause,
				Confidence:  best.SimilarityScore * 0.9,
				Evidence: []string{
					"Similar incident: " + best.Summary,
				},
				SuggestedFix: best.Resolution,
			})
		}
	}

	if cls.SecondaryCategory != "" {
		hypotheses = append(hypotheses, Hypothesis{
			Description: categoryDescriptions[cls.SecondaryCategory],
			Confidence:  cls.Confidence * 0.7,
			Evidence:    []string{"Secondary pattern detected"},
		})
	}

	sort.SliceStable(hypotheses, func(i, j int) bool {
		return hypotheses[i].Confidence > hypotheses[j].Confidence
	})

	alternatives := hypotheses[1:]
	if len(alternatives) > maxAlternatives {
		alternatives = alternatives[:maxAlternatives]
	}
	return hypotheses[0], alternatives
}

func describeHypothesis(ctx fixcontext.Bundle, cls classifier.Classification, affected []AffectedFile) string {
	base := categoryDescriptions[cls.Category]

	if len(ctx.StackTraces) > 0 {
		trace := ctx.StackTraces[0]
		base += " The " + trace.ExceptionType + " occurred"
		if len(trace.Frames) > 0 {
			frame := trace.Frames[0]
			base += " in " + frame.File
			if frame.Function != "" {
				base += " (" + frame.Function + ")"
			}
		}
	}

	if len(affected) > 0 && affected[0].IsRecentlyChanged {
		base += ". Recent changes to " + affected[0].Filename + " may be related."
	}

	return base
}

func gatherEvidence(ctx fixcontext.Bundle, cls classifier.Classification) []string {
	var evidence []string

	indicators := cls.Indicators
	if len(indicators) > 3 {
		indicators = indicators[:3]
	}
	for _, ind := range indicators {
		evidence = append(evidence, "Pattern matched: "+ind)
	}

	errs := ctx.Errors
	if len(errs) > 2 {
		errs = errs[:2]
	}
	for _, e := range errs {
		evidence = append(evidence, "Error: "+truncate(e.Message, 100))
	}

	if len(ctx.StackTraces) > 0 {
		trace := ctx.StackTraces[0]
		evidence = append(evidence, "Exception: "+trace.ExceptionType+": "+truncate(trace.Message, 100))
	}

	return evidence
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func generateFixPatterns(cls classifier.Classification, similar []SimilarIncident) []string {
	seen := map[string]bool{}
	var patterns []string

	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		patterns = append(patterns, p)
	}

	for _, incident := range similar {
		if incident.Resolution != "" && incident.SimilarityScore >= 0.6 {
			add(incident.Resolution)
		}
	}
	for _, p := range categoryFixPatterns[cls.Category] {
		add(p)
	}

	if len(patterns) > 5 {
		patterns = patterns[:5]
	}
	return patterns
}
