package patch

import (
	"fmt"
	"regexp"
	"strings"
)

var dockerFromRe = regexp.MustCompile(`(?m)^FROM\s+\S+(\s+AS\s+\S+)?\s*$`)

// dockerfileUpdate applies up to two independent edits driven by
// Operation.Details: pin_base_image rewrites the first FROM line's
// image[:tag], and apt_get_cleanup appends an "&& rm -rf
// /var/lib/apt/lists/*" continuation to the first line that runs
// apt-get install or apt-get update, if that cleanup isn't already present.
func dockerfileUpdate(content string, details map[string]string) (string, error) {
	out := content
	applied := false

	if image, ok := details["pin_base_image"]; ok {
		loc := dockerFromRe.FindStringIndex(out)
		if loc == nil {
			return "", fmt.Errorf("dockerfile has no FROM line to pin")
		}
		line := out[loc[0]:loc[1]]
		suffix := ""
		if m := regexp.MustCompile(`\s+AS\s+\S+\s*$`).FindString(line); m != "" {
			suffix = m
		}
		out = out[:loc[0]] + "FROM " + image + suffix + out[loc[1]:]
		applied = true
	}

	if _, ok := details["apt_get_cleanup"]; ok {
		if !strings.Contains(out, "rm -rf /var/lib/apt/lists/*") {
			lines := strings.Split(out, "\n")
			for i, l := range lines {
				if strings.Contains(l, "apt-get install") || strings.Contains(l, "apt-get update") {
					lines[i] = strings.TrimRight(l, " \\") + " \\\n    && rm -rf /var/lib/apt/lists/*"
					applied = true
					break
				}
			}
			out = strings.Join(lines, "\n")
		}
	}

	if !applied {
		return "", fmt.Errorf("dockerfile update produced no change")
	}
	return out, nil
}
