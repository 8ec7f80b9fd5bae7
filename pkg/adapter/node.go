package adapter

import (
	"regexp"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

var nodeMissingModuleRe = regexp.MustCompile(`Cannot find module '([^']+)'`)
var nodeErrorPatterns = []*regexp.Regexp{
	nodeMissingModuleRe,
	regexp.MustCompile(`npm ERR!`),
	regexp.MustCompile(`UnhandledPromiseRejectionWarning`),
}

type nodeAdapter struct{}

func NewNodeAdapter() Adapter { return nodeAdapter{} }

func (nodeAdapter) Name() string { return "node" }

func (nodeAdapter) Detect(logText string, repoFiles []string) Detection {
	hasMarker := containsFile(repoFiles, "package.json")
	_, hasMissingModule := firstMatch(nodeMissingModuleRe, logText)
	evidence := matchingLines(nodeErrorPatterns, logText)

	var confidence float64
	switch {
	case hasMarker && hasMissingModule:
		confidence = 0.95
	case hasMissingModule:
		confidence = 0.65
	case hasMarker && len(evidence) > 0:
		confidence = 0.55
	case len(evidence) > 0:
		confidence = 0.35
	}

	return Detection{
		RepoLanguage:  "node",
		Category:      fixtypes.CategoryNodeMissingDependency,
		Confidence:    confidence,
		EvidenceLines: evidence,
	}
}

func (nodeAdapter) AllowedFixTypes() []fixtypes.OperationType {
	return []fixtypes.OperationType{fixtypes.OpAddDependency, fixtypes.OpPinDependency, fixtypes.OpUpdateConfig}
}

func (nodeAdapter) AllowedCategories() []fixtypes.Category {
	return []fixtypes.Category{fixtypes.CategoryNodeMissingDependency}
}

func (nodeAdapter) BuildValidationSteps(repoPath string) []fixtypes.Step {
	return []fixtypes.Step{
		{Name: "install", Command: []string{"npm", "ci"}, WorkingDir: repoPath, TimeoutSec: 300},
		{Name: "test", Command: []string{"npm", "test"}, WorkingDir: repoPath, TimeoutSec: 600},
	}
}
