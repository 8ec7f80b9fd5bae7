package patch

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

// normalizeWhitespace right-trims every line and guarantees a single
// trailing newline, so a diff never fires purely on trailing whitespace.
func normalizeWhitespace(content string) string {
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	// Split on "\n" yields a trailing "" element when content ends in a
	// newline; drop it so join + "\n" doesn't double it.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

type lineOp struct {
	kind byte // ' ', '-', '+'
	text string
	// oldLine/newLine are the 1-based line numbers this op occupies in
	// the old/new file, valid only for the side(s) the op touches.
	oldLine, newLine int
}

// diffLines computes a line-granular edit script between before and
// after using go-diff's line-to-rune encoding trick, so the underlying
// Myers diff operates on whole lines instead of characters.
func diffLines(before, after string) []lineOp {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var ops []lineOp
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		lines := splitKeepLines(d.Text)
		var kind byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = ' '
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, l := range lines {
			op := lineOp{kind: kind, text: l}
			switch kind {
			case ' ':
				op.oldLine, op.newLine = oldLine, newLine
				oldLine++
				newLine++
			case '-':
				op.oldLine = oldLine
				oldLine++
			case '+':
				op.newLine = newLine
				newLine++
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// splitKeepLines splits text on its line boundaries without emitting a
// trailing empty string when text ends with "\n".
func splitKeepLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// unifiedDiff renders before/after as a unified diff with contextLines
// of context, matching the header conventions diffutil.Parse expects:
// "--- a/<path>" / "+++ b/<path>" / "@@ -l,s +l,s @@".
func unifiedDiff(filePath, before, after string) string {
	ops := diffLines(before, after)

	var changeIdx []int
	for i, op := range ops {
		if op.kind != ' ' {
			changeIdx = append(changeIdx, i)
		}
	}
	if len(changeIdx) == 0 {
		return ""
	}

	type group struct{ first, last int }
	var groups []group
	first, last := changeIdx[0], changeIdx[0]
	for _, idx := range changeIdx[1:] {
		if idx-last-1 <= 2*contextLines {
			last = idx
			continue
		}
		groups = append(groups, group{first, last})
		first, last = idx, idx
	}
	groups = append(groups, group{first, last})

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", filePath)
	fmt.Fprintf(&b, "+++ b/%s\n", filePath)

	for _, g := range groups {
		start := g.first - contextLines
		if start < 0 {
			start = 0
		}
		end := g.last + contextLines + 1
		if end > len(ops) {
			end = len(ops)
		}

		hunkOps := ops[start:end]
		oldCount, newCount := 0, 0
		oldStart, newStart := 0, 0
		for _, op := range hunkOps {
			switch op.kind {
			case ' ':
				oldCount++
				newCount++
				if oldStart == 0 {
					oldStart = op.oldLine
				}
				if newStart == 0 {
					newStart = op.newLine
				}
			case '-':
				oldCount++
				if oldStart == 0 {
					oldStart = op.oldLine
				}
			case '+':
				newCount++
				if newStart == 0 {
					newStart = op.newLine
				}
			}
		}
		if oldStart == 0 {
			oldStart = 1
		}
		if newStart == 0 {
			newStart = 1
		}

		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", oldStart, oldCount, newStart, newCount)
		for _, op := range hunkOps {
			b.WriteByte(op.kind)
			b.WriteString(op.text)
			b.WriteByte('\n')
		}
	}

	return b.String()
}

// countDiffChanges counts added/removed content lines in a unified diff,
// excluding the "---"/"+++" file headers — mirrors diffutil's counting
// rule so patch stats and policy evaluation agree.
func countDiffChanges(diffText string) (added, removed int) {
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
