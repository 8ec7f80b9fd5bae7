package patch

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	goRequireBlockRe = regexp.MustCompile(`(?m)^require\s*\(\s*$`)
	goRequireLineRe  = regexp.MustCompile(`^(\s*)([^\s]+)\s+([^\s]+)(\s*//.*)?$`)
)

// goModUpsertRequire updates an existing require line for module (inside
// a require(...) block or as a standalone "require module version"
// statement), or appends a new single-line require if none exists.
func goModUpsertRequire(content, module, version string) (string, error) {
	lines := strings.Split(content, "\n")

	if loc := goRequireBlockRe.FindStringIndex(content); loc != nil {
		start := indexOfLine(content, loc[0]) + 1
		for i := start; i < len(lines); i++ {
			trimmed := strings.TrimSpace(lines[i])
			if trimmed == ")" {
				newLine := fmt.Sprintf("\t%s %s", module, version)
				lines = append(lines[:i], append([]string{newLine}, lines[i:]...)...)
				return strings.Join(lines, "\n"), nil
			}
			if m := goRequireLineRe.FindStringSubmatch(lines[i]); m != nil && m[2] == module {
				comment := m[4]
				lines[i] = fmt.Sprintf("%s%s %s%s", m[1], module, version, comment)
				return strings.Join(lines, "\n"), nil
			}
		}
	}

	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) >= 3 && fields[0] == "require" && fields[1] == module {
			lines[i] = fmt.Sprintf("require %s %s", module, version)
			return strings.Join(lines, "\n"), nil
		}
	}

	out := strings.TrimRight(content, "\n") + fmt.Sprintf("\n\nrequire %s %s\n", module, version)
	return out, nil
}

func indexOfLine(content string, byteOffset int) int {
	return strings.Count(content[:byteOffset], "\n")
}

// goSumEnsureTrailingNewline is the go.sum side effect of a go.mod
// require bump: the original only guarantees a trailing newline and
// leaves checksum management to `go mod tidy` outside this pipeline.
func goSumEnsureTrailingNewline(content string) string {
	if content == "" {
		return ""
	}
	return strings.TrimRight(content, "\n") + "\n"
}
