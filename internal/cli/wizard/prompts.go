// Package wizard provides interactive prompts for CLI commands.
package wizard

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
)

// Settings are the values collected by sprintwatch init.
type Settings struct {
	Domain       string
	Email        string
	ProjectKey   string
	PointsField  string
	ChannelID    string
	SlackEnabled bool
	Components   []string
}

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]+$`)

// PromptSettings asks for the connection settings, starting from defaults.
// Tokens are not collected; they belong in the environment or Secret Manager.
func PromptSettings(defaults Settings) (*Settings, error) {
	s := defaults
	components := strings.Join(defaults.Components, ", ")

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Jira").
				Description("API tokens are read from JIRA_API_TOKEN or a Secret Manager path, never from this file."),

			huh.NewInput().
				Title("Jira site URL").
				Placeholder("https://acme.atlassian.net").
				Value(&s.Domain).
				Validate(ValidateDomain),

			huh.NewInput().
				Title("Account email").
				Value(&s.Email).
				Validate(ValidateEmail),

			huh.NewInput().
				Title("Project key").
				Value(&s.ProjectKey).
				Validate(ValidateProjectKey),

			huh.NewInput().
				Title("Story points field ID (optional)").
				Placeholder("customfield_10016").
				Value(&s.PointsField),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Post reports to Slack?").
				Value(&s.SlackEnabled),

			huh.NewInput().
				Title("Slack channel ID").
				Value(&s.ChannelID),

			huh.NewInput().
				Title("Tracked components (comma-separated, optional)").
				Value(&components),
		),
	)

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("prompt cancelled: %w", err)
	}

	s.Domain = NormalizeDomain(s.Domain)
	s.ProjectKey = strings.ToUpper(strings.TrimSpace(s.ProjectKey))
	s.Components = parseList(components)

	return &s, nil
}

// ConfirmOverwrite asks before replacing an existing config file.
func ConfirmOverwrite(path string) (bool, error) {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Existing configuration found").
				Description(path),

			huh.NewConfirm().
				Title("Overwrite it?").
				Value(&confirmed),
		),
	)

	if err := form.Run(); err != nil {
		return false, err
	}

	return confirmed, nil
}

// ValidateDomain accepts a bare host or an http(s) URL.
func ValidateDomain(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("jira site URL is required")
	}
	normalized := NormalizeDomain(s)
	if normalized == "" {
		return fmt.Errorf("invalid jira site URL: %s", s)
	}
	u, err := url.Parse(normalized)
	if err != nil || u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return fmt.Errorf("invalid jira site URL: %s", s)
	}
	return nil
}

// NormalizeDomain adds https:// when no scheme is given and drops any
// trailing slash. It returns "" when nothing follows the scheme.
func NormalizeDomain(s string) string {
	s = strings.TrimSpace(s)
	scheme := "https://"
	for _, prefix := range []string{"https://", "http://"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			scheme, s = prefix, s[len(prefix):]
			break
		}
	}
	s = strings.TrimRight(s, "/")
	if s == "" {
		return ""
	}
	return scheme + s
}

func ValidateEmail(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("invalid email: %s", s)
	}
	return nil
}

func ValidateProjectKey(s string) error {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fmt.Errorf("project key is required")
	}
	if !projectKeyPattern.MatchString(s) {
		return fmt.Errorf("invalid project key: %s", s)
	}
	return nil
}

func parseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
