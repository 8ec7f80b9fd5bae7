// Package contextbuilder implements orchestrator.ContextBuilder: it turns
// a Request's already-fetched log text into the FailureContextBundle the
// classifier, RCA engine, and plan generator consume. Fetching the log
// text itself (the Repository provider's download_job_logs) happens
// upstream, before the orchestrator ever sees a Request.
package contextbuilder

import (
	"context"
	"time"

	"github.com/relayci/fixpipeline/pkg/fixcontext"
	"github.com/relayci/fixpipeline/pkg/logparser"
	"github.com/relayci/fixpipeline/pkg/orchestrator"
)

// Builder is the default, in-process ContextBuilder: pkg/logparser over
// Request.LogText, everything else copied straight from the request.
type Builder struct{}

// New builds a Builder. It holds no state; logparser.Parse is pure.
func New() *Builder {
	return &Builder{}
}

// Build implements orchestrator.ContextBuilder.
func (b *Builder) Build(_ context.Context, req orchestrator.Request) (fixcontext.Bundle, error) {
	parsed := logparser.Parse(req.LogText)

	return fixcontext.Bundle{
		EventID:      req.EventID,
		Repo:         req.RepoURL,
		CommitSHA:    req.CommitSHA,
		Branch:       req.Branch,
		LogContent:   req.LogText,
		LogSummary:   summaryText(parsed.Summary),
		Errors:       toErrors(parsed.Errors),
		StackTraces:  toStackTraces(parsed.StackTraces),
		TestFailures: toTestFailures(parsed.TestFailures),
		BuildErrors:  toBuildErrors(parsed.BuildErrors),
		CreatedAt:    time.Now(),
	}, nil
}

func summaryText(s logparser.Summary) string {
	var out string
	for _, l := range s.HeadLines {
		out += l + "\n"
	}
	for _, l := range s.TailLines {
		out += l + "\n"
	}
	return out
}

func toErrors(lines []string) []fixcontext.ErrorInfo {
	out := make([]fixcontext.ErrorInfo, 0, len(lines))
	for _, l := range lines {
		out = append(out, fixcontext.ErrorInfo{Message: l})
	}
	return out
}

// toStackTraces maps logparser's flat-frame traces onto fixcontext's
// structured StackFrame. logparser does not resolve file/line per frame,
// so each raw frame line becomes a frame whose Function is the full line.
func toStackTraces(traces []logparser.StackTrace) []fixcontext.StackTrace {
	out := make([]fixcontext.StackTrace, 0, len(traces))
	for _, t := range traces {
		frames := make([]fixcontext.StackFrame, 0, len(t.Frames))
		for _, f := range t.Frames {
			frames = append(frames, fixcontext.StackFrame{Function: f})
		}
		out = append(out, fixcontext.StackTrace{
			Language:  t.Language,
			Message:   t.Message,
			Frames:    frames,
			RootCause: t.RootCause,
		})
	}
	return out
}

func toTestFailures(failures []logparser.TestFailure) []fixcontext.TestFailure {
	out := make([]fixcontext.TestFailure, 0, len(failures))
	for _, f := range failures {
		out = append(out, fixcontext.TestFailure{TestName: f.Name, ErrorMessage: f.Message})
	}
	return out
}

func toBuildErrors(errs []logparser.BuildError) []fixcontext.BuildErrorInfo {
	out := make([]fixcontext.BuildErrorInfo, 0, len(errs))
	for _, e := range errs {
		out = append(out, fixcontext.BuildErrorInfo{Message: e.Message})
	}
	return out
}
