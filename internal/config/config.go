package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the full sprintwatch configuration
type Config struct {
	Jira    JiraConfig    `mapstructure:"jira"`
	Slack   SlackConfig   `mapstructure:"slack"`
	Output  OutputConfig  `mapstructure:"output"`
	Reports ReportsConfig `mapstructure:"reports"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Events  EventsConfig  `mapstructure:"events"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// JiraConfig contains tracker connection settings
type JiraConfig struct {
	Domain         string `mapstructure:"domain"` // e.g. https://acme.atlassian.net
	Email          string `mapstructure:"email"`
	APIToken       string `mapstructure:"api_token"`
	APITokenSecret string `mapstructure:"api_token_secret"` // Secret Manager path, used when api_token is empty
	ProjectKey     string `mapstructure:"project_key"`
	PageSize       int    `mapstructure:"page_size"`
	Timeout        string `mapstructure:"timeout"` // empty = no client timeout

	StoryPointsField string `mapstructure:"story_points_field"`
	SprintField      string `mapstructure:"sprint_field"`
	EpicLinkField    string `mapstructure:"epic_link_field"`
}

// SlackConfig contains chat publishing settings
type SlackConfig struct {
	BotToken       string `mapstructure:"bot_token"`
	BotTokenSecret string `mapstructure:"bot_token_secret"`
	ChannelID      string `mapstructure:"channel_id"`
	Disabled       bool   `mapstructure:"disabled"`
}

// OutputConfig controls where artifacts are written
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// Board maps a team name to its agile board.
type Board struct {
	Name string `mapstructure:"name" yaml:"name"`
	ID   int    `mapstructure:"id" yaml:"id"`
}

// ReportsConfig holds per-report settings
type ReportsConfig struct {
	// SlippedCSV is the sprint watchdog export listing slipped story keys.
	SlippedCSV string `mapstructure:"slipped_csv"`

	Dependencies  DependenciesConfig  `mapstructure:"dependencies"`
	Readiness     ReadinessConfig     `mapstructure:"readiness"`
	Completion    CompletionConfig    `mapstructure:"completion"`
	Slipping      SlippingConfig      `mapstructure:"slipping"`
	Epics         EpicsConfig         `mapstructure:"epics"`
	Backlog       BacklogConfig       `mapstructure:"backlog"`
	SprintChanges SprintChangesConfig `mapstructure:"sprint_changes"`

	// Variables are substituted into chat messages as {{name}}.
	Variables map[string]string `mapstructure:"variables"`
}

type DependenciesConfig struct {
	StatusFilter string `mapstructure:"status_filter"`
}

type ReadinessConfig struct {
	Boards          []Board  `mapstructure:"boards"`
	ReadyStatuses   []string `mapstructure:"ready_statuses"`
	VelocitySprints int      `mapstructure:"velocity_sprints"`
}

type CompletionConfig struct {
	Boards []Board `mapstructure:"boards"`
}

type SlippingConfig struct {
	Components []string `mapstructure:"components"`
}

type EpicsConfig struct {
	Keys []string `mapstructure:"keys"`
}

type BacklogConfig struct {
	Statuses []string `mapstructure:"statuses"`
}

type SprintChangesConfig struct {
	// Input is the CSV whose keys are looked up; defaults to the epic-map
	// output in the output directory.
	Input string `mapstructure:"input"`
}

// ArchiveConfig enables copying artifacts to an S3-compatible bucket
type ArchiveConfig struct {
	S3Bucket   string `mapstructure:"s3_bucket"`
	S3Prefix   string `mapstructure:"s3_prefix"`
	S3Region   string `mapstructure:"s3_region"`
	S3Endpoint string `mapstructure:"s3_endpoint"` // custom endpoint for MinIO
}

// EventsConfig enables run-completion events
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
	File    bool   `mapstructure:"file"` // append events.jsonl in the output dir
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

var defaultTeamBoards = []Board{
	{Name: "Data Science", ID: 251},
	{Name: "Design", ID: 250},
	{Name: "Engineering - AI Ops", ID: 448},
	{Name: "Engineering - Platform", ID: 252},
	{Name: "Engineering - Product", ID: 514},
}

var defaultCompletionBoards = []Board{
	{Name: "Data Science", ID: 251},
	{Name: "Design", ID: 250},
	{Name: "Engineering", ID: 252},
}

// legacyEnv lists the unprefixed environment names existing .env files use,
// bound alongside the SPRINTWATCH_ prefixed names.
var legacyEnv = map[string][]string{
	"jira.domain":             {"JIRA_DOMAIN"},
	"jira.email":              {"JIRA_EMAIL", "EMAIL"},
	"jira.api_token":          {"JIRA_API_TOKEN", "API_TOKEN"},
	"jira.project_key":        {"JIRA_PROJECT_KEY", "PROJECT_KEY"},
	"jira.story_points_field": {"STORY_POINTS_FIELD"},
	"slack.bot_token":         {"SLACK_BOT_TOKEN"},
	"slack.channel_id":        {"SLACK_CHANNEL_ID"},
}

// EnvKeys returns every config key an environment variable can set: the
// scalar and string list fields of Config, dotted as in the YAML file.
// Board lists and maps are file only.
func EnvKeys() []string {
	return envKeys(reflect.TypeOf(Config{}), "")
}

func envKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + tag
		switch f.Type.Kind() {
		case reflect.Struct:
			keys = append(keys, envKeys(f.Type, key+".")...)
		case reflect.String, reflect.Int, reflect.Bool:
			keys = append(keys, key)
		case reflect.Slice:
			if f.Type.Elem().Kind() == reflect.String {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

// EnvName is the prefixed environment name for key, e.g.
// SPRINTWATCH_JIRA_DOMAIN for jira.domain.
func EnvName(key string) string {
	return "SPRINTWATCH_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// BindEnv registers every key from EnvKeys with its prefixed environment
// name and any legacy names. Unmarshal only sees env values for keys viper
// knows about, so this must run before Load. String lists take
// comma-separated values.
func BindEnv(v *viper.Viper) {
	for _, key := range EnvKeys() {
		names := append([]string{key, EnvName(key)}, legacyEnv[key]...)
		_ = v.BindEnv(names...)
	}
}

// Load loads configuration from the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals configuration from v and applies defaults
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	cfg.Jira.Domain = strings.TrimRight(cfg.Jira.Domain, "/")

	if cfg.Jira.PageSize <= 0 {
		cfg.Jira.PageSize = 100
	}
	if cfg.Jira.SprintField == "" {
		cfg.Jira.SprintField = "customfield_10020"
	}
	if cfg.Jira.EpicLinkField == "" {
		cfg.Jira.EpicLinkField = "customfield_10005"
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}

	if cfg.Reports.SlippedCSV == "" {
		cfg.Reports.SlippedCSV = "sprint_watchdog_filtered_slips.csv"
	}

	if cfg.Reports.Dependencies.StatusFilter == "" {
		cfg.Reports.Dependencies.StatusFilter = "statusCategory != Done"
	}

	if len(cfg.Reports.Readiness.Boards) == 0 {
		cfg.Reports.Readiness.Boards = append([]Board(nil), defaultTeamBoards...)
	}
	if len(cfg.Reports.Readiness.ReadyStatuses) == 0 {
		cfg.Reports.Readiness.ReadyStatuses = []string{"To Do", "Ready for Development"}
	}
	if cfg.Reports.Readiness.VelocitySprints <= 0 {
		cfg.Reports.Readiness.VelocitySprints = 2
	}

	if len(cfg.Reports.Completion.Boards) == 0 {
		cfg.Reports.Completion.Boards = append([]Board(nil), defaultCompletionBoards...)
	}

	if len(cfg.Reports.Slipping.Components) == 0 {
		for _, b := range defaultTeamBoards {
			cfg.Reports.Slipping.Components = append(cfg.Reports.Slipping.Components, b.Name)
		}
	}

	if len(cfg.Reports.Backlog.Statuses) == 0 {
		cfg.Reports.Backlog.Statuses = []string{"New", "Grooming"}
	}

	if cfg.Archive.S3Region == "" {
		cfg.Archive.S3Region = "us-east-1"
	}
	if cfg.Archive.S3Prefix == "" {
		cfg.Archive.S3Prefix = "sprintwatch"
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "sprintwatch.report.completed"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the settings every tracker command needs
func (c *Config) Validate() error {
	if c.Jira.Domain == "" {
		return fmt.Errorf("jira domain is required")
	}
	if !strings.HasPrefix(c.Jira.Domain, "https://") && !strings.HasPrefix(c.Jira.Domain, "http://") {
		return fmt.Errorf("invalid jira domain: %s (must start with https://)", c.Jira.Domain)
	}

	if c.Jira.Email == "" {
		return fmt.Errorf("jira email is required")
	}

	if c.Jira.APIToken == "" && c.Jira.APITokenSecret == "" {
		return fmt.Errorf("jira api_token or api_token_secret is required")
	}

	if c.Jira.Timeout != "" {
		if _, err := time.ParseDuration(c.Jira.Timeout); err != nil {
			return fmt.Errorf("invalid jira timeout: %w", err)
		}
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format: %s (must be json or console)", c.Logging.Format)
	}

	return nil
}

// ValidateForProject performs the additional checks for project-scoped reports
func (c *Config) ValidateForProject() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Jira.ProjectKey == "" {
		return fmt.Errorf("jira project_key is required")
	}

	return nil
}

// ValidateForPublish checks chat settings when publishing is enabled
func (c *Config) ValidateForPublish() error {
	if c.Slack.Disabled {
		return nil
	}

	if c.Slack.BotToken == "" && c.Slack.BotTokenSecret == "" {
		return fmt.Errorf("slack bot_token or bot_token_secret is required (or set slack.disabled)")
	}

	if c.Slack.ChannelID == "" {
		return fmt.Errorf("slack channel_id is required")
	}

	return nil
}

// HTTPTimeout returns the parsed tracker client timeout (zero when unset).
func (c *Config) HTTPTimeout() time.Duration {
	if c.Jira.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Jira.Timeout)
	if err != nil {
		return 0
	}
	return d
}
