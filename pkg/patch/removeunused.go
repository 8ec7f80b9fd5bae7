package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// removeUnusedImport drops a Python "import X" or "from M import X" line
// matching the unused symbol named in Operation.Details["symbol"]. This
// operation type is only ever planned against python-adapter repos
// (pkg/adapter.pythonAdapter is the sole AllowedFixTypes member for
// OpRemoveUnused), so no per-language dispatch is needed here.
func removeUnusedImport(content string, details map[string]string) (string, error) {
	symbol := details["symbol"]
	if symbol == "" {
		return "", fmt.Errorf("remove_unused operation missing required \"symbol\" detail")
	}

	plainImport := regexp.MustCompile(`^\s*import\s+` + regexp.QuoteMeta(symbol) + `\s*$`)
	fromImport := regexp.MustCompile(`^\s*from\s+[\w.]+\s+import\s+` + regexp.QuoteMeta(symbol) + `\s*$`)
	fromImportMulti := regexp.MustCompile(`^(\s*from\s+[\w.]+\s+import\s+)(.+)$`)

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	removed := false

	for _, line := range lines {
		switch {
		case plainImport.MatchString(line) || fromImport.MatchString(line):
			removed = true
			continue
		default:
			if m := fromImportMulti.FindStringSubmatch(line); m != nil {
				names := strings.Split(m[2], ",")
				kept := names[:0]
				for _, n := range names {
					if strings.TrimSpace(n) != symbol {
						kept = append(kept, n)
					} else {
						removed = true
					}
				}
				if len(kept) == 0 {
					continue
				}
				if len(kept) != len(names) {
					out = append(out, m[1]+strings.Join(kept, ","))
					continue
				}
			}
			out = append(out, line)
		}
	}

	if !removed {
		return "", fmt.Errorf("remove_unused found no import of %q to remove", symbol)
	}

	return strings.Join(out, "\n"), nil
}
