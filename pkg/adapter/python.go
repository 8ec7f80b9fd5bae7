package adapter

import (
	"regexp"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

var pythonMissingModuleRe = regexp.MustCompile(`ModuleNotFoundError: No module named '([^']+)'`)
var pythonErrorPatterns = []*regexp.Regexp{
	pythonMissingModuleRe,
	regexp.MustCompile(`ImportError: cannot import name`),
	regexp.MustCompile(`Traceback \(most recent call last\)`),
}

type pythonAdapter struct{}

func NewPythonAdapter() Adapter { return pythonAdapter{} }

func (pythonAdapter) Name() string { return "python" }

func (pythonAdapter) Detect(logText string, repoFiles []string) Detection {
	hasMarker := containsFile(repoFiles, "pyproject.toml") ||
		containsFile(repoFiles, "requirements.txt") ||
		containsFile(repoFiles, "setup.py")

	_, hasMissingModule := firstMatch(pythonMissingModuleRe, logText)
	evidence := matchingLines(pythonErrorPatterns, logText)

	var confidence float64
	switch {
	case hasMarker && hasMissingModule:
		confidence = 0.95
	case hasMissingModule:
		confidence = 0.7
	case hasMarker && len(evidence) > 0:
		confidence = 0.6
	case len(evidence) > 0:
		confidence = 0.4
	}

	return Detection{
		RepoLanguage:  "python",
		Category:      fixtypes.CategoryPythonMissingDependency,
		Confidence:    confidence,
		EvidenceLines: evidence,
	}
}

func (pythonAdapter) AllowedFixTypes() []fixtypes.OperationType {
	return []fixtypes.OperationType{fixtypes.OpAddDependency, fixtypes.OpPinDependency, fixtypes.OpRemoveUnused}
}

func (pythonAdapter) AllowedCategories() []fixtypes.Category {
	return []fixtypes.Category{fixtypes.CategoryPythonMissingDependency, fixtypes.CategoryRemoveUnusedImport}
}

func (pythonAdapter) BuildValidationSteps(repoPath string) []fixtypes.Step {
	return []fixtypes.Step{
		{Name: "install", Command: []string{"pip", "install", "-e", "."}, WorkingDir: repoPath, TimeoutSec: 300},
		{Name: "test", Command: []string{"pytest", "-v"}, WorkingDir: repoPath, TimeoutSec: 600},
	}
}
