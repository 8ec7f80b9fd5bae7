package patch

import "strings"

// requirementsUpsertDependency replaces an existing requirements.txt
// entry for depName (matched case-insensitively against bare name,
// "name==", or "name>=" forms) with "depName<depSpec>", or appends a new
// line if no entry existed. depSpec is expected to carry its own
// operator, e.g. "==2.31.0".
func requirementsUpsertDependency(content, depName, depSpec string) string {
	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
	}
	normalized := strings.ToLower(depName)
	updated := false

	out := make([]string, 0, len(lines)+1)
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			out = append(out, line)
			continue
		}

		lowered := strings.ToLower(stripped)
		if lowered == normalized ||
			strings.HasPrefix(lowered, normalized+"==") ||
			strings.HasPrefix(lowered, normalized+">=") {
			out = append(out, depName+depSpec)
			updated = true
		} else {
			out = append(out, line)
		}
	}

	if !updated {
		out = append(out, depName+depSpec)
	}

	return strings.Join(out, "\n") + "\n"
}
