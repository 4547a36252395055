package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
)

func validConfig() Config {
	cfg := Config{
		Jira: JiraConfig{
			Domain:     "https://acme.atlassian.net",
			Email:      "pm@acme.test",
			APIToken:   "token",
			ProjectKey: "CLP",
		},
		Slack: SlackConfig{
			BotToken:  "xoxb-test",
			ChannelID: "C123",
		},
	}
	applyDefaults(&cfg)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "missing domain",
			mutate:  func(c *Config) { c.Jira.Domain = "" },
			wantErr: true,
			errMsg:  "jira domain is required",
		},
		{
			name:    "domain without scheme",
			mutate:  func(c *Config) { c.Jira.Domain = "acme.atlassian.net" },
			wantErr: true,
			errMsg:  "invalid jira domain",
		},
		{
			name:    "missing email",
			mutate:  func(c *Config) { c.Jira.Email = "" },
			wantErr: true,
			errMsg:  "jira email is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Jira.APIToken = "" },
			wantErr: true,
			errMsg:  "api_token or api_token_secret",
		},
		{
			name: "token from secret manager",
			mutate: func(c *Config) {
				c.Jira.APIToken = ""
				c.Jira.APITokenSecret = "jira-api-token"
			},
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *Config) { c.Jira.Timeout = "soon" },
			wantErr: true,
			errMsg:  "invalid jira timeout",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
			errMsg:  "invalid logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestConfig_ValidateForProject(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ValidateForProject(); err != nil {
		t.Fatalf("ValidateForProject() unexpected error: %v", err)
	}

	cfg.Jira.ProjectKey = ""
	err := cfg.ValidateForProject()
	if err == nil || !strings.Contains(err.Error(), "project_key is required") {
		t.Errorf("ValidateForProject() error = %v, want project_key error", err)
	}
}

func TestConfig_ValidateForPublish(t *testing.T) {
	tests := []struct {
		name    string
		slack   SlackConfig
		wantErr string
	}{
		{name: "token and channel", slack: SlackConfig{BotToken: "xoxb", ChannelID: "C1"}},
		{name: "secret and channel", slack: SlackConfig{BotTokenSecret: "slack-bot", ChannelID: "C1"}},
		{name: "disabled skips checks", slack: SlackConfig{Disabled: true}},
		{name: "missing token", slack: SlackConfig{ChannelID: "C1"}, wantErr: "bot_token"},
		{name: "missing channel", slack: SlackConfig{BotToken: "xoxb"}, wantErr: "channel_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Slack = tt.slack
			err := cfg.ValidateForPublish()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateForPublish() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateForPublish() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Jira: JiraConfig{Domain: "https://acme.atlassian.net/"}}
	applyDefaults(cfg)

	if cfg.Jira.Domain != "https://acme.atlassian.net" {
		t.Errorf("Domain = %q, want trailing slash trimmed", cfg.Jira.Domain)
	}
	if cfg.Jira.PageSize != 100 {
		t.Errorf("PageSize = %d, want 100", cfg.Jira.PageSize)
	}
	if cfg.Jira.SprintField != "customfield_10020" {
		t.Errorf("SprintField = %q, want customfield_10020", cfg.Jira.SprintField)
	}
	if cfg.Jira.EpicLinkField != "customfield_10005" {
		t.Errorf("EpicLinkField = %q, want customfield_10005", cfg.Jira.EpicLinkField)
	}
	if cfg.Output.Dir != "." {
		t.Errorf("Output.Dir = %q, want .", cfg.Output.Dir)
	}
	if cfg.Reports.SlippedCSV != "sprint_watchdog_filtered_slips.csv" {
		t.Errorf("SlippedCSV = %q", cfg.Reports.SlippedCSV)
	}
	if cfg.Reports.Dependencies.StatusFilter != "statusCategory != Done" {
		t.Errorf("StatusFilter = %q", cfg.Reports.Dependencies.StatusFilter)
	}
	if diff := cmp.Diff([]string{"To Do", "Ready for Development"}, cfg.Reports.Readiness.ReadyStatuses); diff != "" {
		t.Errorf("ReadyStatuses mismatch (-want +got):\n%s", diff)
	}
	if cfg.Reports.Readiness.VelocitySprints != 2 {
		t.Errorf("VelocitySprints = %d, want 2", cfg.Reports.Readiness.VelocitySprints)
	}
	if len(cfg.Reports.Readiness.Boards) != 5 {
		t.Errorf("Readiness boards = %d, want 5", len(cfg.Reports.Readiness.Boards))
	}
	if len(cfg.Reports.Completion.Boards) != 3 {
		t.Errorf("Completion boards = %d, want 3", len(cfg.Reports.Completion.Boards))
	}
	if len(cfg.Reports.Slipping.Components) != 5 {
		t.Errorf("Slipping components = %d, want 5", len(cfg.Reports.Slipping.Components))
	}
	if diff := cmp.Diff([]string{"New", "Grooming"}, cfg.Reports.Backlog.Statuses); diff != "" {
		t.Errorf("Backlog statuses mismatch (-want +got):\n%s", diff)
	}
	if cfg.Events.Subject != "sprintwatch.report.completed" {
		t.Errorf("Events.Subject = %q", cfg.Events.Subject)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestApplyDefaults_KeepsOverrides(t *testing.T) {
	cfg := &Config{
		Jira: JiraConfig{PageSize: 50},
		Reports: ReportsConfig{
			Readiness: ReadinessConfig{Boards: []Board{{Name: "Mobile", ID: 9}}},
		},
	}
	applyDefaults(cfg)

	if cfg.Jira.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Jira.PageSize)
	}
	if diff := cmp.Diff([]Board{{Name: "Mobile", ID: 9}}, cfg.Reports.Readiness.Boards); diff != "" {
		t.Errorf("Boards mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyDefaults_DoesNotShareDefaultBoards(t *testing.T) {
	a := &Config{}
	applyDefaults(a)
	a.Reports.Readiness.Boards[0].ID = 1

	b := &Config{}
	applyDefaults(b)
	if b.Reports.Readiness.Boards[0].ID != 251 {
		t.Errorf("default boards mutated through a previous config: got %d", b.Reports.Readiness.Boards[0].ID)
	}
}

func TestLoadFrom_YAMLAndLegacyEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".sprintwatch.yaml")
	content := `
jira:
  domain: https://acme.atlassian.net
  project_key: CLP
reports:
  readiness:
    boards:
      - name: Data Science
        id: 251
  epics:
    keys: [CLP-75, CLP-112]
  variables:
    team: Platform
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("EMAIL", "legacy@acme.test")
	t.Setenv("SPRINTWATCH_JIRA_API_TOKEN", "prefixed-token")
	t.Setenv("SLACK_CHANNEL_ID", "C42")

	v := viper.New()
	v.SetConfigFile(path)
	BindEnv(v)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error: %v", err)
	}

	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.Jira.Email != "legacy@acme.test" {
		t.Errorf("Email = %q, want legacy env value", cfg.Jira.Email)
	}
	if cfg.Jira.APIToken != "prefixed-token" {
		t.Errorf("APIToken = %q, want prefixed env value", cfg.Jira.APIToken)
	}
	if cfg.Slack.ChannelID != "C42" {
		t.Errorf("ChannelID = %q, want C42", cfg.Slack.ChannelID)
	}
	if diff := cmp.Diff([]Board{{Name: "Data Science", ID: 251}}, cfg.Reports.Readiness.Boards); diff != "" {
		t.Errorf("Boards mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"CLP-75", "CLP-112"}, cfg.Reports.Epics.Keys); diff != "" {
		t.Errorf("Epic keys mismatch (-want +got):\n%s", diff)
	}
	if cfg.Reports.Variables["team"] != "Platform" {
		t.Errorf("Variables = %v, want team=Platform", cfg.Reports.Variables)
	}
	if err := cfg.ValidateForProject(); err != nil {
		t.Errorf("ValidateForProject() error: %v", err)
	}
}

func TestBindEnv_PrefixedKeys(t *testing.T) {
	t.Setenv("SPRINTWATCH_JIRA_TIMEOUT", "30s")
	t.Setenv("SPRINTWATCH_JIRA_PAGE_SIZE", "50")
	t.Setenv("SPRINTWATCH_SLACK_DISABLED", "true")
	t.Setenv("SPRINTWATCH_ARCHIVE_S3_PREFIX", "sprintwatch/")
	t.Setenv("SPRINTWATCH_EVENTS_FILE", "true")
	t.Setenv("SPRINTWATCH_LOGGING_FORMAT", "json")
	t.Setenv("SPRINTWATCH_REPORTS_DEPENDENCIES_STATUS_FILTER", "status != Done")
	t.Setenv("SPRINTWATCH_REPORTS_READINESS_VELOCITY_SPRINTS", "4")
	t.Setenv("SPRINTWATCH_REPORTS_EPICS_KEYS", "CLP-75,CLP-112")

	v := viper.New()
	BindEnv(v)
	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if got := cfg.HTTPTimeout(); got != 30*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 30s", got)
	}
	if cfg.Jira.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", cfg.Jira.PageSize)
	}
	if !cfg.Slack.Disabled {
		t.Error("Slack.Disabled = false, want true")
	}
	if cfg.Archive.S3Prefix != "sprintwatch/" {
		t.Errorf("S3Prefix = %q, want sprintwatch/", cfg.Archive.S3Prefix)
	}
	if !cfg.Events.File {
		t.Error("Events.File = false, want true")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Reports.Dependencies.StatusFilter != "status != Done" {
		t.Errorf("StatusFilter = %q", cfg.Reports.Dependencies.StatusFilter)
	}
	if cfg.Reports.Readiness.VelocitySprints != 4 {
		t.Errorf("VelocitySprints = %d, want 4", cfg.Reports.Readiness.VelocitySprints)
	}
	if diff := cmp.Diff([]string{"CLP-75", "CLP-112"}, cfg.Reports.Epics.Keys); diff != "" {
		t.Errorf("Epic keys mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvKeys(t *testing.T) {
	keys := EnvKeys()
	has := make(map[string]bool, len(keys))
	for _, k := range keys {
		has[k] = true
	}
	for _, want := range []string{
		"jira.domain", "jira.page_size", "jira.timeout", "jira.sprint_field", "jira.epic_link_field",
		"slack.disabled", "output.dir", "reports.slipped_csv", "reports.sprint_changes.input",
		"reports.backlog.statuses", "archive.s3_endpoint", "events.subject", "logging.format",
	} {
		if !has[want] {
			t.Errorf("EnvKeys() missing %q", want)
		}
	}
	for _, fileOnly := range []string{"reports.readiness.boards", "reports.completion.boards", "reports.variables"} {
		if has[fileOnly] {
			t.Errorf("EnvKeys() includes file-only key %q", fileOnly)
		}
	}
	for key := range legacyEnv {
		if !has[key] {
			t.Errorf("legacy names bound to unknown key %q", key)
		}
	}
	if got := EnvName("reports.sprint_changes.input"); got != "SPRINTWATCH_REPORTS_SPRINT_CHANGES_INPUT" {
		t.Errorf("EnvName() = %q", got)
	}
}

func TestHTTPTimeout(t *testing.T) {
	cfg := validConfig()
	if got := cfg.HTTPTimeout(); got != 0 {
		t.Errorf("HTTPTimeout() = %v, want 0 when unset", got)
	}
	cfg.Jira.Timeout = "45s"
	if got := cfg.HTTPTimeout(); got != 45*time.Second {
		t.Errorf("HTTPTimeout() = %v, want 45s", got)
	}
}
