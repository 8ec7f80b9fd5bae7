package rca

import (
	"testing"

	"github.com/relayci/fixpipeline/pkg/fixcontext"
)

func TestAnalyze_StackTraceFilesDominateAffected(t *testing.T) {
	ctx := fixcontext.Bundle{
		StackTraces: []fixcontext.StackTrace{
			{
				ExceptionType: "TypeError",
				Message:       "cannot read property of undefined",
				Frames:        []fixcontext.StackFrame{{File: "src/app.js", Function: "handler"}},
			},
		},
		ChangedFiles: []fixcontext.ChangedFile{
			{Filename: "src/app.js", Status: "modified"},
			{Filename: "README.md", Status: "modified"},
		},
	}

	result := New(nil).Analyze(ctx)
	if len(result.AffectedFiles) == 0 {
		t.Fatal("expected at least one affected file")
	}
	top := result.AffectedFiles[0]
	if top.Filename != "src/app.js" {
		t.Errorf("top affected file = %s, want src/app.js", top.Filename)
	}
	if top.RelevanceScore != stackTraceRelevance {
		t.Errorf("RelevanceScore = %v, want %v", top.RelevanceScore, stackTraceRelevance)
	}
	if !top.IsRecentlyChanged {
		t.Error("src/app.js is also a changed file and should be marked recently changed")
	}
}

func TestAnalyze_DependencyFileBonus(t *testing.T) {
	ctx := fixcontext.Bundle{
		Errors: []fixcontext.ErrorInfo{{Message: "ModuleNotFoundError: No module named 'requests'"}},
		ChangedFiles: []fixcontext.ChangedFile{
			{Filename: "requirements.txt", Status: "modified"},
			{Filename: "docs/index.md", Status: "modified"},
		},
	}
	result := New(nil).Analyze(ctx)
	var found bool
	for _, f := range result.AffectedFiles {
		if f.Filename == "requirements.txt" {
			found = true
			if f.RelevanceScore < 0.7 {
				t.Errorf("requirements.txt relevance = %v, want >= 0.7", f.RelevanceScore)
			}
		}
		if f.Filename == "docs/index.md" {
			t.Error("docs/index.md should fall below the relevance cutoff for a dependency failure")
		}
	}
	if !found {
		t.Fatal("requirements.txt should be in affected files")
	}
}

func TestAnalyze_NoSimilarityWithoutSearcher(t *testing.T) {
	result := New(nil).Analyze(fixcontext.Bundle{})
	if len(result.SimilarIncidents) != 0 {
		t.Error("expected no similar incidents without a SimilaritySearcher")
	}
}

type stubSearcher struct {
	incidents []SimilarIncident
}

func (s stubSearcher) Search(query string, k int) ([]SimilarIncident, error) {
	return s.incidents, nil
}

func TestAnalyze_SimilarityCutoffFiltersLowScores(t *testing.T) {
	searcher := stubSearcher{incidents: []SimilarIncident{
		{IncidentID: "a", SimilarityScore: 0.8, RootCause: "flaky network", Summary: "retry fixed it", Resolution: "add retry"},
		{IncidentID: "b", SimilarityScore: 0.1, RootCause: "unrelated"},
	}}
	result := New(searcher).Analyze(fixcontext.Bundle{})
	if len(result.SimilarIncidents) != 1 {
		t.Fatalf("len(SimilarIncidents) = %d, want 1", len(result.SimilarIncidents))
	}
	if result.SimilarIncidents[0].IncidentID != "a" {
		t.Errorf("IncidentID = %s, want a", result.SimilarIncidents[0].IncidentID)
	}
}

func TestAnalyze_AlternativesCappedAtThree(t *testing.T) {
	searcher := stubSearcher{incidents: []SimilarIncident{
		{IncidentID: "a", SimilarityScore: 0.95, RootCause: "known issue", Summary: "s", Resolution: "r"},
	}}
	ctx := fixcontext.Bundle{
		Errors: []fixcontext.ErrorInfo{{Message: "ModuleNotFoundError: No module named 'x'"}},
	}
	result := New(searcher).Analyze(ctx)
	if len(result.AlternativeHypotheses) > maxAlternatives {
		t.Errorf("len(AlternativeHypotheses) = %d, want <= %d", len(result.AlternativeHypotheses), maxAlternatives)
	}
}

func TestAnalyze_FixPatternsDeduped(t *testing.T) {
	ctx := fixcontext.Bundle{Errors: []fixcontext.ErrorInfo{{Message: "ModuleNotFoundError: No module named 'x'"}}}
	result := New(nil).Analyze(ctx)
	seen := map[string]bool{}
	for _, p := range result.SuggestedPatterns {
		if seen[p] {
			t.Errorf("duplicate fix pattern: %s", p)
		}
		seen[p] = true
	}
	if len(result.SuggestedPatterns) > 5 {
		t.Errorf("len(SuggestedPatterns) = %d, want <= 5", len(result.SuggestedPatterns))
	}
}
