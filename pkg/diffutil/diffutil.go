// Package diffutil parses unified diff text into structured file and line
// statistics. It is the single source of truth for diff measurement used by
// the policy engine and the patch generator, so both see identical file
// lists and line counts for the same diff text.
package diffutil

import (
	"fmt"
	"strings"
)

// FileDiff describes one file entry inside a unified diff.
type FileDiff struct {
	OldPath     string
	NewPath     string
	LinesAdded  int
	LinesRemoved int
}

// ParsedDiff is the result of parsing a unified diff document.
type ParsedDiff struct {
	Files            []FileDiff
	TotalLinesAdded  int
	TotalLinesRemoved int
	DiffBytes        int
}

// MalformedDiff reports a unified diff that is missing required headers or
// has them out of order.
type MalformedDiff struct {
	Reason string
}

func (e *MalformedDiff) Error() string {
	return fmt.Sprintf("malformed diff: %s", e.Reason)
}

// Parse parses diffText into a ParsedDiff. Fails with *MalformedDiff when
// the `---`/`+++`/`@@` headers are absent or appear out of order.
func Parse(diffText string) (*ParsedDiff, error) {
	if strings.TrimSpace(diffText) == "" {
		return nil, &MalformedDiff{Reason: "empty diff text"}
	}

	lines := strings.Split(diffText, "\n")
	result := &ParsedDiff{DiffBytes: len(diffText)}

	var current *FileDiff
	var sawOldHeader bool
	var sawHunkForCurrentFile bool

	flush := func() {
		if current != nil {
			if !sawHunkForCurrentFile {
				return
			}
			result.Files = append(result.Files, *current)
		}
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "--- "):
			flush()
			path := normalizePath(strings.TrimPrefix(line, "--- "))
			current = &FileDiff{OldPath: path}
			sawOldHeader = true
			sawHunkForCurrentFile = false

		case strings.HasPrefix(line, "+++ "):
			if !sawOldHeader || current == nil {
				return nil, &MalformedDiff{Reason: "'+++' header without preceding '---' header"}
			}
			current.NewPath = normalizePath(strings.TrimPrefix(line, "+++ "))
			sawOldHeader = false

		case strings.HasPrefix(line, "@@"):
			if current == nil {
				return nil, &MalformedDiff{Reason: "hunk header '@@' without a preceding file header"}
			}
			sawHunkForCurrentFile = true

		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			if current == nil || !sawHunkForCurrentFile {
				continue
			}
			current.LinesAdded++
			result.TotalLinesAdded++

		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			if current == nil || !sawHunkForCurrentFile {
				continue
			}
			current.LinesRemoved++
			result.TotalLinesRemoved++
		}
	}
	flush()

	if len(result.Files) == 0 {
		return nil, &MalformedDiff{Reason: "no valid file headers ('---'/'+++'/'@@') found"}
	}

	return result, nil
}

// Paths returns the set of effective (new) paths touched by the diff, in
// the order they appear.
func (p *ParsedDiff) Paths() []string {
	out := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		out = append(out, f.EffectivePath())
	}
	return out
}

// EffectivePath prefers the new path (the post-patch name); falls back to
// the old path for deletions where NewPath is "/dev/null".
func (f FileDiff) EffectivePath() string {
	if f.NewPath != "" && f.NewPath != "dev/null" {
		return f.NewPath
	}
	return f.OldPath
}

// normalizePath strips a/ and b/ prefixes, a leading ./, trims any trailing
// tab-separated timestamp unified diff tools append, and converts
// backslashes to forward slashes.
func normalizePath(raw string) string {
	path := raw
	if idx := strings.IndexByte(path, '\t'); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimSpace(path)
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.TrimPrefix(path, "./")
	if strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		path = path[2:]
	}
	if path == "/dev/null" {
		path = "dev/null"
	}
	return path
}
