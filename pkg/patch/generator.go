// Package patch implements C7, the patch generator: it takes a FixPlan
// (C6's output) and a read-only view of the target repository and
// produces a single unified diff plus aggregate change statistics,
// without ever touching a working tree on disk.
package patch

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/relayci/fixpipeline/pkg/fixtypes"
	"github.com/relayci/fixpipeline/pkg/plan"
)

// Stats is the aggregate shape spec §3's PatchOutput.stats describes.
type Stats struct {
	FilesChanged      int
	TotalFiles        int
	TotalLinesAdded   int
	TotalLinesRemoved int
	DiffBytes         int
}

// Output is C7's result: spec §3's PatchOutput entity.
type Output struct {
	DiffText string
	Stats    Stats
}

// Generate reads each of plan.Files from repoFS, applies every operation
// targeting that file, diffs the normalized before/after content, and
// concatenates the per-file diffs into one patch. Files an operation
// touches that don't yet exist in repoFS read as empty content, so
// add_dependency can create a requirements.txt or package.json from
// scratch.
func Generate(repoFS fs.FS, p plan.FixPlan) (Output, error) {
	opsByFile := map[string][]plan.Operation{}
	for _, op := range p.Operations {
		opsByFile[op.File] = append(opsByFile[op.File], op)
	}

	files := append([]string(nil), p.Files...)
	sort.Strings(files)

	var diffs []string
	stats := Stats{TotalFiles: len(files)}

	for _, file := range files {
		ops := opsByFile[file]
		if len(ops) == 0 {
			continue
		}

		before, err := readFile(repoFS, file)
		if err != nil {
			return Output{}, fmt.Errorf("patch: reading %s: %w", file, err)
		}

		after := before
		for _, op := range ops {
			after, err = applyOperation(after, op)
			if err != nil {
				return Output{}, fmt.Errorf("patch: applying %s to %s: %w", op.Type, file, err)
			}
		}

		normBefore := normalizeWhitespace(before)
		normAfter := normalizeWhitespace(after)
		if normBefore == normAfter {
			continue
		}

		diffText := unifiedDiff(file, normBefore, normAfter)
		if diffText == "" {
			continue
		}

		added, removed := countDiffChanges(diffText)
		stats.FilesChanged++
		stats.TotalLinesAdded += added
		stats.TotalLinesRemoved += removed
		diffs = append(diffs, diffText)
	}

	diffText := strings.Join(diffs, "")
	stats.DiffBytes = len(diffText)

	return Output{DiffText: diffText, Stats: stats}, nil
}

func readFile(repoFS fs.FS, file string) (string, error) {
	data, err := fs.ReadFile(repoFS, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

func applyOperation(content string, op plan.Operation) (string, error) {
	switch op.Type {
	case fixtypes.OpAddDependency, fixtypes.OpPinDependency:
		return applyDependency(content, op)
	case fixtypes.OpUpdateConfig:
		return applyUpdateConfig(content, op)
	case fixtypes.OpRemoveUnused:
		return removeUnusedImport(content, op.Details)
	default:
		return "", fmt.Errorf("unknown operation type %q", op.Type)
	}
}

func applyDependency(content string, op plan.Operation) (string, error) {
	ext := path.Base(op.File)
	name := op.Details["name"]
	version := op.Details["version"]

	switch {
	case ext == "pyproject.toml":
		spec := version
		if spec == "" {
			spec = "*"
		}
		return tomlUpsertDependency(content, name, spec)

	case strings.HasSuffix(ext, "requirements.txt") || strings.HasPrefix(ext, "requirements"):
		return requirementsUpsertDependency(content, name, version), nil

	case ext == "package.json":
		spec := version
		if spec == "" {
			spec = "latest"
		}
		return packageJSONUpsertDependency(content, name, spec)

	case ext == "go.mod":
		v := version
		if v == "" {
			v = "latest"
		}
		return goModUpsertRequire(content, name, v)

	case ext == "pom.xml":
		groupID, artifactID := splitCoordinate(name)
		target := op.Details["target"]
		if target == "plugin" {
			return pomXMLPinPluginVersion(content, groupID, artifactID, version)
		}
		return pomXMLPinDependencyVersion(content, groupID, artifactID, version)

	case ext == "Dockerfile":
		image := op.Details["image"]
		if image == "" {
			image = name
		}
		return dockerfileUpdate(content, map[string]string{"pin_base_image": image})

	default:
		return "", fmt.Errorf("no dependency handler for file %q", op.File)
	}
}

func applyUpdateConfig(content string, op plan.Operation) (string, error) {
	switch path.Base(op.File) {
	case "package-lock.json":
		return packageLockUpdate(content, op.Details)
	case "Dockerfile":
		return dockerfileUpdate(content, op.Details)
	case "go.sum":
		return goSumEnsureTrailingNewline(content), nil
	default:
		return "", fmt.Errorf("no update_config handler for file %q", op.File)
	}
}

func splitCoordinate(name string) (groupID, artifactID string) {
	parts := strings.SplitN(name, ":", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", name
}
