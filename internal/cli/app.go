package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andywolf/sprintwatch/internal/archive"
	"github.com/andywolf/sprintwatch/internal/cloud/gcp"
	"github.com/andywolf/sprintwatch/internal/config"
	"github.com/andywolf/sprintwatch/internal/events"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/logging"
	"github.com/andywolf/sprintwatch/internal/reports"
	"github.com/andywolf/sprintwatch/internal/security"
	"github.com/andywolf/sprintwatch/internal/slack"
	"github.com/andywolf/sprintwatch/internal/version"
)

// app holds what one command invocation needs, built from configuration.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	runID   string
	tracker *jira.Client
}

// newApp loads and validates configuration, resolves credentials and
// builds the logger and tracker client.
func newApp(ctx context.Context, requireProject, publish bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	validate := cfg.Validate
	if requireProject {
		validate = cfg.ValidateForProject
	}
	if err := validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if publish {
		if err := cfg.ValidateForPublish(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	if err := resolveSecrets(ctx, cfg, publish); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger, err := newLogger(cfg, runID, viper.GetBool("verbose"))
	if err != nil {
		return nil, err
	}

	tracker := jira.NewClient(cfg.Jira.Domain, cfg.Jira.Email, cfg.Jira.APIToken,
		jira.WithPageSize(cfg.Jira.PageSize),
		jira.WithTimeout(cfg.HTTPTimeout()),
	)

	logger.Debug("configuration loaded",
		zap.String("version", version.Short()),
		zap.String("domain", cfg.Jira.Domain),
		zap.String("project", cfg.Jira.ProjectKey),
		zap.String("output_dir", cfg.Output.Dir),
	)

	return &app{cfg: cfg, logger: logger, runID: runID, tracker: tracker}, nil
}

// resolveSecrets fills tokens from Secret Manager where only a secret path
// is configured. The Secret Manager client is created only when needed.
func resolveSecrets(ctx context.Context, cfg *config.Config, publish bool) error {
	needJira := cfg.Jira.APIToken == "" && cfg.Jira.APITokenSecret != ""
	needSlack := publish && !cfg.Slack.Disabled && cfg.Slack.BotToken == "" && cfg.Slack.BotTokenSecret != ""
	if !needJira && !needSlack {
		return nil
	}

	sm, err := gcp.NewSecretManagerClient(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = sm.Close() }()

	if needJira {
		if cfg.Jira.APIToken, err = gcp.Resolve(ctx, sm, "", cfg.Jira.APITokenSecret); err != nil {
			return fmt.Errorf("jira api token: %w", err)
		}
	}
	if needSlack {
		if cfg.Slack.BotToken, err = gcp.Resolve(ctx, sm, "", cfg.Slack.BotTokenSecret); err != nil {
			return fmt.Errorf("slack bot token: %w", err)
		}
	}
	return nil
}

// newLogger builds the structured logger. --verbose switches to debug
// level on the console encoder; otherwise JSON is used on GCP unless the
// format is configured explicitly.
func newLogger(cfg *config.Config, runID string, verbose bool) (*zap.Logger, error) {
	scrubber := security.NewScrubber()
	scrubber.AddLiteral(cfg.Jira.APIToken)
	scrubber.AddLiteral(cfg.Slack.BotToken)

	level, format := cfg.Logging.Level, cfg.Logging.Format
	if !viper.IsSet("logging.format") && !gcp.IsRunningOnGCP() {
		format = "console"
	}
	if verbose {
		level, format = "debug", "console"
	}

	return logging.New(
		logging.WithLevel(level),
		logging.WithFormat(format),
		logging.WithRunID(runID),
		logging.WithScrubber(scrubber),
	)
}

// reportEnv wires the publishers around the tracker. The returned cleanup
// closes the event publishers and flushes the logger.
func (a *app) reportEnv(ctx context.Context, publish bool) (*reports.Env, func(), error) {
	env := &reports.Env{
		Config:  a.cfg,
		Tracker: a.tracker,
		Logger:  a.logger,
		RunID:   a.runID,
	}

	if publish && !a.cfg.Slack.Disabled {
		env.Chat = slack.NewClient(a.cfg.Slack.BotToken, a.cfg.Slack.ChannelID)
	} else {
		env.Chat = slack.DryRun{Logger: a.logger}
		env.DryRun = true
	}

	env.Archiver = archive.Noop{}
	if a.cfg.Archive.S3Bucket != "" {
		s3a, err := archive.NewS3Archiver(ctx, a.cfg.Archive.S3Bucket, a.cfg.Archive.S3Prefix, a.cfg.Archive.S3Region, a.cfg.Archive.S3Endpoint)
		if err != nil {
			return nil, nil, err
		}
		env.Archiver = s3a
	}

	pub, err := newEventPublisher(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	env.Events = pub

	cleanup := func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("failed to close event publishers", zap.Error(err))
		}
		_ = a.logger.Sync()
	}
	return env, cleanup, nil
}

// newEventPublisher combines the configured event sinks. With none
// configured a NoopPublisher is returned.
func newEventPublisher(cfg *config.Config) (events.Publisher, error) {
	var pubs events.Multi

	if cfg.Events.File {
		j, err := events.NewJournal(cfg.Output.Dir)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, j)
	}

	if cfg.Events.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			_ = pubs.Close()
			return nil, err
		}
		pubs = append(pubs, np)
	}

	switch len(pubs) {
	case 0:
		return events.NoopPublisher{}, nil
	case 1:
		return pubs[0], nil
	default:
		return pubs, nil
	}
}

// publishEnabled reports whether results go to Slack for this invocation.
func publishEnabled(cmd *cobra.Command) bool {
	noPublish, _ := cmd.Flags().GetBool("no-publish")
	return !noPublish
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
