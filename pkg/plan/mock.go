package plan

import (
	"context"
	"fmt"
	"regexp"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
)

var (
	pythonMissingModuleRe = regexp.MustCompile(`No module named ['"]([^'"]+)['"]`)
	nodeMissingModuleRe   = regexp.MustCompile(`Cannot find module ['"]([^'"]+)['"]`)
	goMissingPackageRe    = regexp.MustCompile(`no required module provides package ([^\s;]+)`)
	javaMissingArtifactRe = regexp.MustCompile(`Could not find artifact ([^\s]+)`)
	dockerBaseImageRe     = regexp.MustCompile(`(?:pull access denied for|manifest for) (\S+?)(?::|,| not found)`)
)

// canonicalFile maps each known category to the dependency file a
// deterministic fix targets by default, per §4.7.
var canonicalFile = map[fixtypes.Category]string{
	fixtypes.CategoryPythonMissingDependency: "requirements.txt",
	fixtypes.CategoryNodeMissingDependency:   "package.json",
	fixtypes.CategoryGoMissingModule:         "go.mod",
	fixtypes.CategoryJavaMissingDependency:   "pom.xml",
	fixtypes.CategoryDockerPinBaseImage:      "Dockerfile",
}

// pythonProjectFile is preferred over requirements.txt when it is among
// the request's AffectedFiles, mirroring the Python adapter's own marker
// detection (pkg/adapter's pythonAdapter.Detect).
const pythonProjectFile = "pyproject.toml"

// mockGenerator deterministically synthesizes a minimal FixPlan for the
// known categories by pattern-matching the raw log text, without calling
// a language model.
type mockGenerator struct{}

// NewMockGenerator returns the deterministic generator described in
// §4.7's "Deterministic mock" bullet.
func NewMockGenerator() Generator { return mockGenerator{} }

func (mockGenerator) Generate(_ context.Context, req Request) (FixPlan, error) {
	switch req.Category {
	case fixtypes.CategoryPythonMissingDependency:
		return dependencyPlan(req, nodeOrPythonTarget(req, pythonMissingModuleRe, canonicalFile[req.Category]))
	case fixtypes.CategoryNodeMissingDependency:
		return dependencyPlan(req, nodeOrPythonTarget(req, nodeMissingModuleRe, canonicalFile[req.Category]))
	case fixtypes.CategoryGoMissingModule:
		return dependencyPlan(req, nodeOrPythonTarget(req, goMissingPackageRe, canonicalFile[req.Category]))
	case fixtypes.CategoryJavaMissingDependency:
		return dependencyPlan(req, nodeOrPythonTarget(req, javaMissingArtifactRe, canonicalFile[req.Category]))
	case fixtypes.CategoryDockerPinBaseImage:
		return dockerPinPlan(req)
	case fixtypes.CategoryRemoveUnusedImport:
		return removeUnusedPlan(req)
	default:
		return FixPlan{}, fmt.Errorf("plan: no deterministic generator for category %q", req.Category)
	}
}

type depTarget struct {
	name string
	file string
}

func nodeOrPythonTarget(req Request, re *regexp.Regexp, defaultFile string) depTarget {
	file := defaultFile
	if req.Category == fixtypes.CategoryPythonMissingDependency && hasAffectedFile(req, pythonProjectFile) {
		file = pythonProjectFile
	}
	m := re.FindStringSubmatch(req.LogText)
	name := ""
	if len(m) > 1 {
		name = m[1]
	}
	return depTarget{name: name, file: file}
}

func hasAffectedFile(req Request, name string) bool {
	for _, f := range req.AffectedFiles {
		if f == name {
			return true
		}
	}
	return false
}

func dependencyPlan(req Request, target depTarget) (FixPlan, error) {
	if target.name == "" {
		return FixPlan{}, fmt.Errorf("plan: could not extract a dependency name from the log for category %q", req.Category)
	}

	op := Operation{
		Type:      fixtypes.OpAddDependency,
		File:      target.file,
		Details:   map[string]string{"name": target.name},
		Rationale: fmt.Sprintf("log indicates %s is missing", target.name),
		Evidence:  []string{target.name},
	}

	return FixPlan{
		RootCause:  req.RootCause,
		Category:   req.Category,
		Confidence: req.Confidence,
		Files:      []string{target.file},
		Operations: []Operation{op},
	}, nil
}

func dockerPinPlan(req Request) (FixPlan, error) {
	m := dockerBaseImageRe.FindStringSubmatch(req.LogText)
	image := "unknown"
	if len(m) > 1 {
		image = m[1]
	}
	file := canonicalFile[fixtypes.CategoryDockerPinBaseImage]

	op := Operation{
		Type:      fixtypes.OpPinDependency,
		File:      file,
		Details:   map[string]string{"image": image},
		Rationale: fmt.Sprintf("pin base image %s to a resolvable tag/digest", image),
		Evidence:  []string{image},
	}

	return FixPlan{
		RootCause:  req.RootCause,
		Category:   req.Category,
		Confidence: req.Confidence,
		Files:      []string{file},
		Operations: []Operation{op},
	}, nil
}

func removeUnusedPlan(req Request) (FixPlan, error) {
	if len(req.AffectedFiles) == 0 {
		return FixPlan{}, fmt.Errorf("plan: remove_unused_import requires at least one affected file")
	}
	file := req.AffectedFiles[0]

	op := Operation{
		Type:      fixtypes.OpRemoveUnused,
		File:      file,
		Rationale: "remove the unused import reported by the build",
	}

	return FixPlan{
		RootCause:  req.RootCause,
		Category:   req.Category,
		Confidence: req.Confidence,
		Files:      []string{file},
		Operations: []Operation{op},
	}, nil
}
