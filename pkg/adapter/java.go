package adapter

import (
	"regexp"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

var javaMissingDependencyRe = regexp.MustCompile(`Could not resolve dependencies for project|Could not find artifact`)
var javaErrorPatterns = []*regexp.Regexp{
	javaMissingDependencyRe,
	regexp.MustCompile(`Caused by: `),
	regexp.MustCompile(`BUILD FAILURE`),
}

type javaAdapter struct{}

func NewJavaAdapter() Adapter { return javaAdapter{} }

func (javaAdapter) Name() string { return "java" }

func (javaAdapter) Detect(logText string, repoFiles []string) Detection {
	hasMarker := containsFile(repoFiles, "pom.xml") || containsFile(repoFiles, "build.gradle")
	_, hasMissingDependency := firstMatch(javaMissingDependencyRe, logText)
	evidence := matchingLines(javaErrorPatterns, logText)

	var confidence float64
	switch {
	case hasMarker && hasMissingDependency:
		confidence = 0.9
	case hasMissingDependency:
		confidence = 0.55
	case hasMarker && len(evidence) > 0:
		confidence = 0.45
	}

	return Detection{
		RepoLanguage:  "java",
		Category:      fixtypes.CategoryJavaMissingDependency,
		Confidence:    confidence,
		EvidenceLines: evidence,
	}
}

func (javaAdapter) AllowedFixTypes() []fixtypes.OperationType {
	return []fixtypes.OperationType{fixtypes.OpAddDependency, fixtypes.OpPinDependency}
}

func (javaAdapter) AllowedCategories() []fixtypes.Category {
	return []fixtypes.Category{fixtypes.CategoryJavaMissingDependency}
}

func (javaAdapter) BuildValidationSteps(repoPath string) []fixtypes.Step {
	return []fixtypes.Step{
		{Name: "install", Command: []string{"mvn", "-B", "dependency:resolve"}, WorkingDir: repoPath, TimeoutSec: 300},
		{Name: "test", Command: []string{"mvn", "-B", "test"}, WorkingDir: repoPath, TimeoutSec: 900},
	}
}
