package adapter

import (
	"regexp"
	"strings"
)

func containsFile(repoFiles []string, suffix string) bool {
	for _, f := range repoFiles {
		if strings.HasSuffix(f, suffix) {
			return true
		}
	}
	return false
}

func firstMatch(re *regexp.Regexp, logText string) (string, bool) {
	m := re.FindString(logText)
	return m, m != ""
}

func matchingLines(patterns []*regexp.Regexp, logText string) []string {
	var evidence []string
	for _, line := range strings.Split(logText, "\n") {
		for _, p := range patterns {
			if p.MatchString(line) {
				evidence = append(evidence, strings.TrimSpace(line))
				break
			}
		}
	}
	return evidence
}
