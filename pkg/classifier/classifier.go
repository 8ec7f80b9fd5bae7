package classifier

import (
	"sort"
	"strings"

	"github.com/relayci/fixpipeline/pkg/fixcontext"
)

const logTailBytes = 10 * 1024

// Classifier scans a failure context bundle against a fixed rule table.
type Classifier struct {
	rules []rule
}

// New builds a Classifier with the default rule table.
func New() *Classifier {
	return &Classifier{rules: defaultRules()}
}

// Classify scans context's errors, stack traces, test failures, build
// errors, and a bounded log tail against the rule table. Matching rules
// are sorted by static confidence; the top rule wins. If a second rule
// matches with a distinct category it becomes SecondaryCategory.
func (c *Classifier) Classify(ctx fixcontext.Bundle) Classification {
	text := buildSearchText(ctx)

	type match struct {
		r          rule
		indicators []string
	}
	var matches []match
	for _, r := range c.rules {
		if indicators := r.matches(text); len(indicators) > 0 {
			matches = append(matches, match{r, indicators})
		}
	}

	if len(matches) == 0 {
		return Classification{
			Category:   CategoryUnknown,
			Confidence: 0,
			Reasoning:  "No classification patterns matched",
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].r.confidence > matches[j].r.confidence
	})

	best := matches[0]
	result := Classification{
		Category:   best.r.category,
		Confidence: best.r.confidence,
		Reasoning:  best.r.reason,
		Indicators: best.indicators,
	}

	for _, m := range matches[1:] {
		if m.r.category != best.r.category {
			result.SecondaryCategory = m.r.category
			break
		}
	}

	return result
}

func buildSearchText(ctx fixcontext.Bundle) string {
	var parts []string
	for _, e := range ctx.Errors {
		parts = append(parts, e.Message)
	}
	for _, t := range ctx.StackTraces {
		parts = append(parts, t.ExceptionType+": "+t.Message)
	}
	for _, f := range ctx.TestFailures {
		parts = append(parts, f.ErrorMessage)
	}
	for _, b := range ctx.BuildErrors {
		parts = append(parts, b.Message)
	}
	if ctx.LogSummary != "" {
		parts = append(parts, ctx.LogSummary)
	}
	if ctx.LogContent != "" {
		content := ctx.LogContent
		if len(content) > logTailBytes {
			content = content[len(content)-logTailBytes:]
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n")
}
