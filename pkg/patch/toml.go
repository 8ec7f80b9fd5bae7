package patch

import (
	"fmt"
	"regexp"
	"strings"
)

var tomlKeyPattern = regexp.MustCompile(`^\s*([A-Za-z0-9_.-]+)\s*=\s*(.+)$`)

// tomlSectionBounds returns start, the line index of a [section] table's
// header, and end, the index of the next table header (or len(lines)),
// or ok=false if absent. The table's body is lines start+1 through end-1.
func tomlSectionBounds(lines []string, section string) (start, end int, ok bool) {
	header := "[" + section + "]"
	for i, l := range lines {
		if strings.TrimSpace(l) == header {
			start = i
			ok = true
			break
		}
	}
	if !ok {
		return 0, 0, false
	}
	end = len(lines)
	for j := start + 1; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if strings.HasPrefix(lines[j], "[") && strings.HasSuffix(trimmed, "]") {
			end = j
			break
		}
	}
	return start, end, true
}

// tomlUpsertDependency upserts dep_name = "dep_spec" under
// [tool.poetry.dependencies], preserving lexical key ordering except
// for the "python" key, which always stays first.
func tomlUpsertDependency(content, depName, depSpec string) (string, error) {
	lines := strings.Split(content, "\n")
	start, end, ok := tomlSectionBounds(lines, "tool.poetry.dependencies")
	if !ok {
		return "", fmt.Errorf("pyproject.toml missing [tool.poetry.dependencies]")
	}

	type entry struct {
		key string
		idx int
	}
	var existing []entry
	for idx := start + 1; idx < end; idx++ {
		if m := tomlKeyPattern.FindStringSubmatch(lines[idx]); m != nil {
			existing = append(existing, entry{key: m[1], idx: idx})
		}
	}

	for _, e := range existing {
		if strings.EqualFold(e.key, depName) {
			lines[e.idx] = fmt.Sprintf("%s = %q", depName, depSpec)
			return strings.Join(lines, "\n") + "\n", nil
		}
	}

	insertionIdx := end
	for _, e := range existing {
		if !strings.EqualFold(e.key, "python") && strings.ToLower(depName) < strings.ToLower(e.key) {
			insertionIdx = e.idx
			break
		}
	}

	newLine := fmt.Sprintf("%s = %q", depName, depSpec)
	lines = append(lines[:insertionIdx], append([]string{newLine}, lines[insertionIdx:]...)...)
	return strings.Join(lines, "\n") + "\n", nil
}
