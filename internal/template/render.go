// Package template fills {{variable}} placeholders in report titles,
// chat summaries and CSV explanation footers.
package template

import (
	"regexp"
	"time"
)

// variablePattern matches {{variable}} placeholders and captures the name.
var variablePattern = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)

// Render substitutes {{variable}} placeholders in text with values from
// variables. Unknown variables are left as-is.
func Render(text string, variables map[string]string) string {
	if len(variables) == 0 {
		return text
	}

	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		submatches := variablePattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}
		if value, ok := variables[submatches[1]]; ok {
			return value
		}
		return match
	})
}

// Builtins returns the variables every report can reference.
func Builtins(project, runID string, now time.Time) map[string]string {
	return map[string]string{
		"project": project,
		"run_id":  runID,
		"date":    now.Format("2006-01-02"),
	}
}

// MergeVariables merges built-in variables with configured ones.
// Configured values take precedence on name collision.
func MergeVariables(builtins, configured map[string]string) map[string]string {
	if len(builtins) == 0 && len(configured) == 0 {
		return nil
	}

	result := make(map[string]string, len(builtins)+len(configured))
	for k, v := range builtins {
		result[k] = v
	}
	for k, v := range configured {
		result[k] = v
	}
	return result
}
