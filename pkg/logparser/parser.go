package logparser

import (
	"regexp"
	"strings"
)

const (
	headLines = 10
	tailLines = 20
)

var (
	pythonTracebackStart = regexp.MustCompile(`^Traceback \(most recent call last\):`)
	pythonErrorLine      = regexp.MustCompile(`^(\w+(?:\.\w+)*(?:Error|Exception)): (.*)$`)
	pythonFrameLine      = regexp.MustCompile(`^\s+File "`)

	jsErrorLine = regexp.MustCompile(`^(TypeError|ReferenceError|RangeError|SyntaxError|Error): (.*)$`)
	jsFrameLine = regexp.MustCompile(`^\s+at `)

	javaExceptionLine = regexp.MustCompile(`^(?:Exception in thread "[^"]*" )?([\w.$]+(?:Exception|Error)): ?(.*)$`)
	javaFrameLine     = regexp.MustCompile(`^\s*at [\w.$<>]+\([^)]*\)`)
	javaCausedBy      = regexp.MustCompile(`^Caused by: ([\w.$]+(?:Exception|Error)): ?(.*)$`)

	goPanicLine = regexp.MustCompile(`^panic: (.*)$`)
	goFrameLine = regexp.MustCompile(`^(?:goroutine \d+ \[.*\]:|\s*\S+\(.*\)|\s*/.*\.go:\d+.*)$`)

	pytestFailLine = regexp.MustCompile(`^FAILED (\S+) - (.*)$`)
	jestFailLine   = regexp.MustCompile(`^\s*[✗×] (.+)$`)
	mochaFailLine  = regexp.MustCompile(`^\s*\d+\)\s+(.+)$`)
	goTestFailLine = regexp.MustCompile(`^--- FAIL: (\S+) \(([^)]*)\)$`)

	gccErrorLine   = regexp.MustCompile(`^(.+):(\d+):(\d+): error: (.*)$`)
	rustErrorLine  = regexp.MustCompile(`^error(\[E\d+\])?: (.*)$`)
	npmErrLine     = regexp.MustCompile(`^npm ERR! (.*)$`)
	cargoFailLine  = regexp.MustCompile(`^test (\S+) \.\.\. FAILED$`)
)

// Parse extracts structured errors, stack traces, test failures, and build
// errors from raw CI log text. Pure: identical input always yields an
// identical ParsedLog.
func Parse(logText string) ParsedLog {
	lines := strings.Split(logText, "\n")

	result := ParsedLog{}
	result.StackTraces = append(result.StackTraces, parsePythonTraces(lines)...)
	result.StackTraces = append(result.StackTraces, parseJSTraces(lines)...)
	result.StackTraces = append(result.StackTraces, parseJavaTraces(lines)...)
	result.StackTraces = append(result.StackTraces, parseGoPanics(lines)...)

	markRootCausePerLanguage(result.StackTraces)

	for _, t := range result.StackTraces {
		result.Errors = append(result.Errors, t.Message)
	}

	result.TestFailures = append(result.TestFailures, parseTestFailures(lines)...)
	result.BuildErrors = append(result.BuildErrors, parseBuildErrors(lines)...)

	result.Summary = buildSummary(lines, result)

	return result
}

// markRootCausePerLanguage marks the first trace per language as the root
// cause, matching §3's invariant on FailureContextBundle. A language whose
// parser already marked a root cause (Java, which marks the last trace of
// a "Caused by" chain) keeps its parser's marking.
func markRootCausePerLanguage(traces []StackTrace) {
	seen := map[string]bool{}
	for _, t := range traces {
		if t.RootCause {
			seen[t.Language] = true
		}
	}
	for i := range traces {
		if !seen[traces[i].Language] {
			traces[i].RootCause = true
			seen[traces[i].Language] = true
		}
	}
}

func parsePythonTraces(lines []string) []StackTrace {
	var traces []StackTrace
	var frames []string
	inTrace := false

	for _, line := range lines {
		switch {
		case pythonTracebackStart.MatchString(line):
			inTrace = true
			frames = nil
		case inTrace && pythonFrameLine.MatchString(line):
			frames = append(frames, strings.TrimSpace(line))
		case inTrace:
			if m := pythonErrorLine.FindStringSubmatch(line); m != nil {
				traces = append(traces, StackTrace{
					Language: "python",
					Message:  m[1] + ": " + m[2],
					Frames:   frames,
				})
				inTrace = false
			}
		}
	}
	return traces
}

func parseJSTraces(lines []string) []StackTrace {
	var traces []StackTrace
	var current *StackTrace

	flush := func() {
		if current != nil {
			traces = append(traces, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if m := jsErrorLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &StackTrace{Language: "javascript", Message: m[1] + ": " + m[2]}
			continue
		}
		if current != nil && jsFrameLine.MatchString(line) {
			current.Frames = append(current.Frames, strings.TrimSpace(line))
			continue
		}
		if current != nil && !jsFrameLine.MatchString(line) {
			flush()
		}
	}
	flush()
	return traces
}

// parseJavaTraces collapses "Caused by:" chains into consecutive traces,
// per §4.4, with the last in the chain marked root cause below;
// markRootCausePerLanguage leaves that marking as it is. Java prints
// exception classes fully qualified, so an undotted name (Python's
// ModuleNotFoundError, JavaScript's TypeError) starts a Java trace only
// after the JVM's "Exception in thread" prefix.
func parseJavaTraces(lines []string) []StackTrace {
	var traces []StackTrace
	var current *StackTrace

	flush := func() {
		if current != nil {
			traces = append(traces, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if m := javaExceptionLine.FindStringSubmatch(line); m != nil &&
			(strings.Contains(m[1], ".") || strings.HasPrefix(line, "Exception in thread ")) {
			flush()
			current = &StackTrace{Language: "java", Message: m[1] + ": " + m[2]}
			continue
		}
		if m := javaCausedBy.FindStringSubmatch(line); m != nil {
			flush()
			current = &StackTrace{Language: "java", Message: m[1] + ": " + m[2]}
			continue
		}
		if current != nil && javaFrameLine.MatchString(line) {
			current.Frames = append(current.Frames, strings.TrimSpace(line))
		}
	}
	flush()

	// the last exception in a "Caused by" chain is the true root cause in
	// Java's convention (innermost cause printed last), so reverse the
	// generic first-wins default for this language only.
	for i := range traces {
		traces[i].RootCause = false
	}
	if len(traces) > 0 {
		traces[len(traces)-1].RootCause = true
	}

	return traces
}

func parseGoPanics(lines []string) []StackTrace {
	var traces []StackTrace
	var current *StackTrace

	flush := func() {
		if current != nil {
			traces = append(traces, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if m := goPanicLine.FindStringSubmatch(line); m != nil {
			flush()
			current = &StackTrace{Language: "go", Message: "panic: " + m[1]}
			continue
		}
		if current != nil {
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			if goFrameLine.MatchString(line) {
				current.Frames = append(current.Frames, strings.TrimSpace(line))
			}
		}
	}
	flush()
	return traces
}

func parseTestFailures(lines []string) []TestFailure {
	var failures []TestFailure
	for _, line := range lines {
		if m := pytestFailLine.FindStringSubmatch(line); m != nil {
			failures = append(failures, TestFailure{Framework: "pytest", Name: m[1], Message: m[2]})
			continue
		}
		if m := jestFailLine.FindStringSubmatch(line); m != nil {
			failures = append(failures, TestFailure{Framework: "jest", Name: strings.TrimSpace(m[1])})
			continue
		}
		if m := goTestFailLine.FindStringSubmatch(line); m != nil {
			failures = append(failures, TestFailure{Framework: "go test", Name: m[1], Message: m[2]})
			continue
		}
		if m := cargoFailLine.FindStringSubmatch(line); m != nil {
			failures = append(failures, TestFailure{Framework: "cargo test", Name: m[1]})
			continue
		}
		if m := mochaFailLine.FindStringSubmatch(line); m != nil {
			failures = append(failures, TestFailure{Framework: "mocha", Name: strings.TrimSpace(m[1])})
		}
	}
	return failures
}

func parseBuildErrors(lines []string) []BuildError {
	var errs []BuildError
	for _, line := range lines {
		if m := gccErrorLine.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{Tool: "gcc/clang", Message: m[1] + ":" + m[2] + ": " + m[4]})
			continue
		}
		if m := rustErrorLine.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{Tool: "rustc", Code: strings.Trim(m[1], "[]"), Message: m[2]})
			continue
		}
		if m := npmErrLine.FindStringSubmatch(line); m != nil {
			errs = append(errs, BuildError{Tool: "npm", Message: m[1]})
		}
	}
	return errs
}

func buildSummary(lines []string, parsed ParsedLog) Summary {
	s := Summary{
		ErrorCount:   len(parsed.Errors),
		TraceCount:   len(parsed.StackTraces),
		FailureCount: len(parsed.TestFailures) + len(parsed.BuildErrors),
	}
	if len(lines) <= headLines+tailLines {
		s.HeadLines = lines
		return s
	}
	s.HeadLines = append([]string{}, lines[:headLines]...)
	s.TailLines = append([]string{}, lines[len(lines)-tailLines:]...)
	return s
}
