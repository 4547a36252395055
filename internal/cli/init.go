package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/andywolf/sprintwatch/internal/cli/wizard"
)

const configFileName = ".sprintwatch.yaml"

var errConfigExists = errors.New("config file already exists")

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize report configuration",
	Long: `Initialize sprintwatch configuration for the current directory.

This creates a .sprintwatch.yaml file with the Jira connection and Slack
channel. Tokens are never written to it: set JIRA_API_TOKEN and
SLACK_BOT_TOKEN in the environment (or .env), or configure Secret Manager
paths with jira.api_token_secret and slack.bot_token_secret.

On a terminal the values are prompted for; flags pre-fill the prompts.

Example:
  sprintwatch init
  sprintwatch init --non-interactive --domain acme.atlassian.net --email me@acme.com --project CLP`,
	Args: cobra.NoArgs,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().String("domain", "", "Jira site URL")
	initCmd.Flags().String("email", "", "Jira account email")
	initCmd.Flags().String("points-field", "", "Story points custom field ID")
	initCmd.Flags().String("channel", "", "Slack channel ID (empty disables publishing)")
	initCmd.Flags().StringSlice("components", nil, "Components tracked by the slipping report")
	initCmd.Flags().Bool("force", false, "Overwrite existing config")
	initCmd.Flags().Bool("non-interactive", false, "Do not prompt; use flag values only")
}

type projectConfig struct {
	Jira struct {
		Domain           string `yaml:"domain"`
		Email            string `yaml:"email"`
		ProjectKey       string `yaml:"project_key"`
		StoryPointsField string `yaml:"story_points_field,omitempty"`
	} `yaml:"jira"`
	Slack struct {
		ChannelID string `yaml:"channel_id,omitempty"`
		Disabled  bool   `yaml:"disabled"`
	} `yaml:"slack"`
	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
	Reports *reportsSection `yaml:"reports,omitempty"`
}

type reportsSection struct {
	Slipping struct {
		Components []string `yaml:"components"`
	} `yaml:"slipping"`
}

func initProject(cmd *cobra.Command, args []string) error {
	configPath := filepath.Join(".", configFileName)
	force, _ := cmd.Flags().GetBool("force")
	nonInteractive, _ := cmd.Flags().GetBool("non-interactive")
	interactive := !nonInteractive && term.IsTerminal(int(os.Stdin.Fd()))

	if _, err := os.Stat(configPath); err == nil && !force {
		if !interactive {
			return fmt.Errorf("%w at %s (use --force to overwrite)", errConfigExists, configPath)
		}
		ok, err := wizard.ConfirmOverwrite(configPath)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Keeping existing configuration.")
			return nil
		}
		force = true
	}

	s := wizard.Settings{}
	s.Domain, _ = cmd.Flags().GetString("domain")
	s.Email, _ = cmd.Flags().GetString("email")
	s.ProjectKey, _ = cmd.Flags().GetString("project")
	s.PointsField, _ = cmd.Flags().GetString("points-field")
	s.ChannelID, _ = cmd.Flags().GetString("channel")
	s.Components, _ = cmd.Flags().GetStringSlice("components")
	s.SlackEnabled = s.ChannelID != ""

	if interactive {
		prompted, err := wizard.PromptSettings(s)
		if err != nil {
			return err
		}
		s = *prompted
	} else {
		s.Domain = wizard.NormalizeDomain(s.Domain)
		s.ProjectKey = strings.ToUpper(s.ProjectKey)
		for _, check := range []struct {
			value string
			fn    func(string) error
		}{
			{s.Domain, wizard.ValidateDomain},
			{s.Email, wizard.ValidateEmail},
			{s.ProjectKey, wizard.ValidateProjectKey},
		} {
			if err := check.fn(check.value); err != nil {
				return err
			}
		}
	}

	if err := writeProjectConfig(configPath, s, force); err != nil {
		return err
	}

	printNextSteps(cmd.OutOrStdout(), configPath)
	return nil
}

// newProjectConfig maps prompted settings onto the config file layout.
func newProjectConfig(s wizard.Settings) projectConfig {
	var cfg projectConfig
	cfg.Jira.Domain = s.Domain
	cfg.Jira.Email = s.Email
	cfg.Jira.ProjectKey = s.ProjectKey
	cfg.Jira.StoryPointsField = s.PointsField
	cfg.Slack.ChannelID = s.ChannelID
	cfg.Slack.Disabled = !s.SlackEnabled || s.ChannelID == ""
	cfg.Output.Dir = "reports"

	if len(s.Components) > 0 {
		cfg.Reports = &reportsSection{}
		cfg.Reports.Slipping.Components = s.Components
	}
	return cfg
}

// writeProjectConfig writes the YAML config with a header pointing at the
// credential sources. An existing file is only replaced when force is set.
func writeProjectConfig(path string, s wizard.Settings, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w at %s (use --force to overwrite)", errConfigExists, path)
	}

	data, err := yaml.Marshal(newProjectConfig(s))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# Sprintwatch Configuration
# Credentials are not stored here. Set JIRA_API_TOKEN and SLACK_BOT_TOKEN
# (environment or .env), or jira.api_token_secret / slack.bot_token_secret.

`

	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func printNextSteps(w io.Writer, path string) {
	fmt.Fprintf(w, "Created %s\n\n", path)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Export JIRA_API_TOKEN (and SLACK_BOT_TOKEN to publish)")
	fmt.Fprintln(w, "  2. Run 'sprintwatch jira whoami' to check the connection")
	fmt.Fprintln(w, "  3. Run 'sprintwatch jira fields --filter point' to find the story points field")
	fmt.Fprintln(w, "  4. Run 'sprintwatch dependencies --no-publish' for a first report")
}
