// Package security redacts credentials from text that leaves the process:
// log lines, tracker error bodies echoed into errors, chat messages.
package security

import (
	"regexp"
)

const redacted = "***REDACTED***"

type rule struct {
	pattern *regexp.Regexp
	replace func(match string) string
}

func keepPrefix(n int) func(string) string {
	return func(match string) string {
		if len(match) <= n {
			return redacted
		}
		return match[:n] + redacted
	}
}

var defaultRules = []rule{
	// Atlassian API tokens
	{regexp.MustCompile(`ATATT[A-Za-z0-9_\-=]{20,}`), keepPrefix(5)},

	// Slack bot/user/app tokens
	{regexp.MustCompile(`xox[abprs]-[A-Za-z0-9-]{10,}`), keepPrefix(5)},

	// HTTP basic and bearer credentials
	{regexp.MustCompile(`(?i)\bbasic\s+[A-Za-z0-9+/]{16,}={0,2}`), func(string) string { return "Basic " + redacted }},
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-./+=]{16,}`), func(string) string { return "Bearer " + redacted }},

	// AWS access key IDs
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), keepPrefix(4)},
}

// key=value and key: value assignments of well-known credential names
var assignmentPattern = regexp.MustCompile(`(?i)\b(api[_-]?token|api[_-]?key|access[_-]?token|bot[_-]?token|secret|password)(\s*[:=]\s*)["']?[^\s"'&,]{6,}["']?`)

// Scrubber removes sensitive information from strings
type Scrubber struct {
	rules []rule
}

// NewScrubber creates a Scrubber with the default rules
func NewScrubber() *Scrubber {
	return &Scrubber{rules: defaultRules}
}

// Scrub returns input with every recognised credential replaced
func (s *Scrubber) Scrub(input string) string {
	out := input
	for _, r := range s.rules {
		out = r.pattern.ReplaceAllStringFunc(out, r.replace)
	}
	return assignmentPattern.ReplaceAllString(out, "${1}${2}"+redacted)
}

// AddPattern registers an extra pattern; matches are fully redacted
func (s *Scrubber) AddPattern(pattern *regexp.Regexp) {
	s.rules = append(append([]rule(nil), s.rules...), rule{
		pattern: pattern,
		replace: func(string) string { return redacted },
	})
}

// AddLiteral redacts an exact secret value, typically a token loaded at
// startup, wherever it appears.
func (s *Scrubber) AddLiteral(secret string) {
	if len(secret) < 4 {
		return
	}
	s.AddPattern(regexp.MustCompile(regexp.QuoteMeta(secret)))
}

// ContainsSensitive reports whether input contains anything Scrub would change
func (s *Scrubber) ContainsSensitive(input string) bool {
	return s.Scrub(input) != input
}
