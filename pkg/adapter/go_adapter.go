package adapter

import (
	"regexp"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

var goMissingModuleRe = regexp.MustCompile(`no required module provides package ([^\s;]+)`)
var goErrorPatterns = []*regexp.Regexp{
	goMissingModuleRe,
	regexp.MustCompile(`^panic: `),
	regexp.MustCompile(`go: updates to go\.sum`),
}

type goAdapter struct{}

func NewGoAdapter() Adapter { return goAdapter{} }

func (goAdapter) Name() string { return "go" }

func (goAdapter) Detect(logText string, repoFiles []string) Detection {
	hasMarker := containsFile(repoFiles, "go.mod")
	_, hasMissingModule := firstMatch(goMissingModuleRe, logText)
	evidence := matchingLines(goErrorPatterns, logText)

	var confidence float64
	switch {
	case hasMarker && hasMissingModule:
		confidence = 0.95
	case hasMissingModule:
		confidence = 0.6
	case hasMarker && len(evidence) > 0:
		confidence = 0.5
	}

	return Detection{
		RepoLanguage:  "go",
		Category:      fixtypes.CategoryGoMissingModule,
		Confidence:    confidence,
		EvidenceLines: evidence,
	}
}

func (goAdapter) AllowedFixTypes() []fixtypes.OperationType {
	return []fixtypes.OperationType{fixtypes.OpAddDependency, fixtypes.OpPinDependency, fixtypes.OpUpdateConfig}
}

func (goAdapter) AllowedCategories() []fixtypes.Category {
	return []fixtypes.Category{fixtypes.CategoryGoMissingModule}
}

func (goAdapter) BuildValidationSteps(repoPath string) []fixtypes.Step {
	return []fixtypes.Step{
		{Name: "install", Command: []string{"go", "mod", "download"}, WorkingDir: repoPath, TimeoutSec: 180},
		{Name: "test", Command: []string{"go", "test", "./..."}, WorkingDir: repoPath, TimeoutSec: 600},
	}
}
