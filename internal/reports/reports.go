// Package reports implements the batch report jobs. Each job fetches from
// the tracker, writes a CSV (and charts) into the output directory and
// hands the result to Env.Run for publishing, archiving and events.
package reports

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/andywolf/sprintwatch/internal/archive"
	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/config"
	"github.com/andywolf/sprintwatch/internal/events"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/slack"
	"github.com/andywolf/sprintwatch/internal/template"
)

// Tracker is the part of the Jira client the reports use.
type Tracker interface {
	Search(ctx context.Context, jql string, opts jira.SearchOptions) ([]*jira.Issue, error)
	SearchPage(ctx context.Context, jql string, startAt, maxResults int, opts jira.SearchOptions) (*jira.SearchPage, error)
	ListSprints(ctx context.Context, boardID int, state string) ([]jira.Sprint, error)
	SprintIssues(ctx context.Context, sprintID, maxResults int, fields []string) ([]*jira.Issue, error)
	GetSprintReport(ctx context.Context, boardID, sprintID int) (*jira.SprintReport, error)
	GetIssue(ctx context.Context, key string, fields []string, expand string) (*jira.Issue, error)
}

var _ Tracker = (*jira.Client)(nil)

// Env carries everything a report run needs. It is built once per
// process by the CLI.
type Env struct {
	Config   *config.Config
	Tracker  Tracker
	Chat     slack.Publisher
	Archiver archive.Archiver
	Events   events.Publisher
	Logger   *zap.Logger
	RunID    string

	// DryRun marks runs whose chat publisher only logs.
	DryRun bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Output is what a report build produced.
type Output struct {
	Rows  int
	Files []string // written artifacts, CSV first

	// Message is posted before the uploads; empty means no message.
	Message string
	Uploads []slack.Upload

	// Tolerant reports log chat failures instead of failing the run.
	Tolerant bool
}

// Report is a named batch job.
type Report struct {
	Name  string
	Short string
	Long  string

	// Project reports need jira.project_key.
	Project bool

	Build func(ctx context.Context, env *Env) (*Output, error)
}

// All returns every report in command order.
func All() []Report {
	return []Report{
		dependenciesReport,
		readinessReport,
		completionReport,
		slippingReport,
		slippedByEpicReport,
		backlogReport,
		epicMapReport,
		sprintChangesReport,
	}
}

// Lookup finds a report by name.
func Lookup(name string) (Report, bool) {
	for _, r := range All() {
		if r.Name == name {
			return r, true
		}
	}
	return Report{}, false
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// path places an artifact in the output directory.
func (e *Env) path(name string) string {
	return filepath.Join(e.Config.Output.Dir, name)
}

// render fills {{variables}} in chat and footer text.
func (e *Env) render(text string) string {
	vars := template.MergeVariables(
		template.Builtins(e.Config.Jira.ProjectKey, e.RunID, e.now()),
		e.Config.Reports.Variables,
	)
	return template.Render(text, vars)
}

// Run builds r, publishes its output, archives the artifacts and emits a
// completion or failure event. Event delivery problems are only logged.
func (e *Env) Run(ctx context.Context, r Report) error {
	start := e.now()
	log := e.logger().With(zap.String("report", r.Name))
	log.Info("report started")

	ev := events.ReportEvent{
		RunID:   e.RunID,
		Report:  r.Name,
		Project: e.Config.Jira.ProjectKey,
	}

	out, err := r.Build(ctx, e)
	if err == nil {
		ev.Rows = out.Rows
		ev.Artifacts = out.Files
		ev.Published, err = e.publish(ctx, log, out)
	}
	if err == nil && e.Archiver != nil && len(out.Files) > 0 {
		var keys []string
		keys, err = e.Archiver.Archive(ctx, r.Name, e.RunID, out.Files)
		if err != nil {
			err = fmt.Errorf("archive artifacts: %w", err)
		}
		ev.ArchiveKeys = keys
	}

	ev.Timestamp = e.now()
	ev.DurationMS = ev.Timestamp.Sub(start).Milliseconds()
	if err != nil {
		ev.Type = events.EventFailed
		ev.Error = err.Error()
		log.Error("report failed", zap.Error(err))
	} else {
		ev.Type = events.EventCompleted
		log.Info("report completed",
			zap.Int("rows", ev.Rows),
			zap.Strings("artifacts", ev.Artifacts),
			zap.Int64("duration_ms", ev.DurationMS),
		)
	}

	if e.Events != nil {
		if perr := e.Events.Publish(ctx, ev); perr != nil {
			log.Warn("failed to publish report event", zap.Error(perr))
		}
	}

	return err
}

// publish posts the message and then each upload. Uploads whose chart
// was skipped are not listed by the builders, so every path exists.
func (e *Env) publish(ctx context.Context, log *zap.Logger, out *Output) (bool, error) {
	if e.Chat == nil || (out.Message == "" && len(out.Uploads) == 0) {
		return false, nil
	}

	delivered := false
	fail := func(err error) error {
		if out.Tolerant {
			log.Warn("chat publish failed", zap.Error(err))
			return nil
		}
		return err
	}

	if out.Message != "" {
		if err := e.Chat.PostMessage(ctx, e.render(out.Message)); err != nil {
			if err := fail(err); err != nil {
				return false, err
			}
		} else {
			delivered = true
		}
	}

	for _, u := range out.Uploads {
		u.Title = e.render(u.Title)
		u.Comment = e.render(u.Comment)
		if err := e.Chat.UploadFile(ctx, u); err != nil {
			if err := fail(err); err != nil {
				return false, err
			}
			continue
		}
		delivered = true
	}

	return delivered && !e.DryRun, nil
}

// writeChart renders a chart into the output directory. A chart with no
// data is skipped: ok is false and no file is left behind.
func (e *Env) writeChart(name string, render chart.Renderer) (path string, ok bool, err error) {
	path = e.path(name)
	if err := chart.WriteFile(path, render); err != nil {
		if errors.Is(err, chart.ErrNoData) {
			e.logger().Info("chart skipped, no data", zap.String("file", name))
			return "", false, nil
		}
		return "", false, fmt.Errorf("render %s: %w", name, err)
	}
	return path, true, nil
}

// chartComment is the initial comment posted with a chart upload.
func chartComment(title, explanation string) string {
	return fmt.Sprintf("📊 *%s*\n%s", title, explanation)
}
