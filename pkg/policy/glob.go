package policy

import (
	"path/filepath"
	"strings"
)

// globMatch matches path against a glob pattern where "**" matches across
// path separators (plain filepath.Match stops at "/"). Used by the Go-side
// danger scorer, which runs independently of the Rego path checks in
// patch.rego (which uses OPA's own glob.match builtin).
func globMatch(pattern, path string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, path)
		return ok
	}

	idx := strings.Index(pattern, "**")
	prefix := strings.TrimSuffix(pattern[:idx], "/")
	suffix := strings.TrimPrefix(pattern[idx+2:], "/")

	if prefix != "" && !strings.HasPrefix(path, prefix) {
		return false
	}
	if suffix == "" {
		return true
	}
	ok, _ := filepath.Match(suffix, filepath.Base(path))
	if ok {
		return true
	}
	return strings.HasSuffix(path, suffix)
}
