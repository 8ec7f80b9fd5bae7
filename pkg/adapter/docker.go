package adapter

import (
	"regexp"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

var dockerErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`failed to solve`),
	regexp.MustCompile(`manifest for .+ not found`),
	regexp.MustCompile(`pull access denied`),
}

type dockerAdapter struct{}

func NewDockerAdapter() Adapter { return dockerAdapter{} }

func (dockerAdapter) Name() string { return "docker" }

func (dockerAdapter) Detect(logText string, repoFiles []string) Detection {
	hasMarker := containsFile(repoFiles, "Dockerfile")
	evidence := matchingLines(dockerErrorPatterns, logText)

	var confidence float64
	switch {
	case hasMarker && len(evidence) > 0:
		confidence = 0.85
	case len(evidence) > 0:
		confidence = 0.4
	}

	return Detection{
		RepoLanguage:  "docker",
		Category:      fixtypes.CategoryDockerPinBaseImage,
		Confidence:    confidence,
		EvidenceLines: evidence,
	}
}

func (dockerAdapter) AllowedFixTypes() []fixtypes.OperationType {
	return []fixtypes.OperationType{fixtypes.OpUpdateConfig}
}

func (dockerAdapter) AllowedCategories() []fixtypes.Category {
	return []fixtypes.Category{fixtypes.CategoryDockerPinBaseImage}
}

func (dockerAdapter) BuildValidationSteps(repoPath string) []fixtypes.Step {
	return []fixtypes.Step{
		{Name: "build", Command: []string{"docker", "build", "-t", "fixpipeline-validate", "."}, WorkingDir: repoPath, TimeoutSec: 600},
	}
}
