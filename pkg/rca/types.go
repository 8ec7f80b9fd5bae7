// Package rca implements the root-cause engine (C5's analysis half):
// combining classification, affected-file scoring, and optional
// similarity lookup into an RCAResult.
package rca

import "github.com/relayci/fixpipeline/pkg/classifier"

// AffectedFile is one file judged relevant to a failure, ranked by
// RelevanceScore.
type AffectedFile struct {
	Filename          string
	RelevanceScore    float64
	Reason            string
	IsInStackTrace    bool
	IsRecentlyChanged bool
	SuggestedAction   string
}

// SimilarIncident is a historical incident retrieved from a vector store.
type SimilarIncident struct {
	IncidentID      string
	SimilarityScore float64
	Summary         string
	RootCause       string
	Resolution      string
}

// Hypothesis is one candidate explanation for a failure.
type Hypothesis struct {
	Description  string
	Confidence   float64
	Evidence     []string
	SuggestedFix string
}

// Result is the output of Engine.Analyze.
type Result struct {
	Classification        classifier.Classification
	PrimaryHypothesis     Hypothesis
	AlternativeHypotheses []Hypothesis
	AffectedFiles         []AffectedFile
	SimilarIncidents      []SimilarIncident
	SuggestedPatterns     []string
}

// SimilaritySearcher is the narrow interface onto an optional historical
// incident vector store. A nil SimilaritySearcher means "no similar
// incidents" rather than an error.
type SimilaritySearcher interface {
	Search(query string, k int) ([]SimilarIncident, error)
}
