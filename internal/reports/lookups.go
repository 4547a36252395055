package reports

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
)

// Per-issue lookups: enrich an existing CSV one issue at a time. A tracker
// error for a single issue only blanks that issue's values; transport
// failures abort the run.

const (
	epicMapCSV       = "slipped_stories_with_epics.csv"
	sprintChangesCSV = "slipped_stories_with_sprint_changes.csv"

	noEpic = "None"
)

var epicMapReport = Report{
	Name:  "epic-map",
	Short: "Add the epic of each slipped story to the slipped-stories CSV",
	Build: buildEpicMap,
}

var sprintChangesReport = Report{
	Name:  "sprint-changes",
	Short: "Add the last sprint move of each story to a CSV",
	Long:  "Reads each issue's changelog and records the sprint it last moved from and to. The input defaults to the epic-map output.",
	Build: buildSprintChanges,
}

func buildEpicMap(ctx context.Context, e *Env) (*Output, error) {
	epicField := e.Config.Jira.EpicLinkField

	t, err := report.ReadCSV(e.Config.Reports.SlippedCSV)
	if err != nil {
		return nil, fmt.Errorf("load slipped stories: %w", err)
	}
	keys, err := report.UniqueValues(t, "key")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Config.Reports.SlippedCSV, err)
	}

	epics := make(map[string]string, len(keys))
	for _, key := range keys {
		is, err := e.Tracker.GetIssue(ctx, key, []string{"summary", epicField}, "")
		if err != nil {
			if jira.StatusOf(err) == 0 {
				return nil, fmt.Errorf("lookup %s: %w", key, err)
			}
			e.logger().Debug("epic lookup failed", zap.String("key", key), zap.Error(err))
			epics[key] = noEpic
			continue
		}
		if epic := is.Fields.Text(epicField); epic != "" {
			epics[key] = epic
		} else {
			epics[key] = noEpic
		}
	}

	if err := report.AddColumn(t, "key", "epic", func(key string) string { return epics[strings.TrimSpace(key)] }); err != nil {
		return nil, err
	}

	csvPath := e.path(epicMapCSV)
	if err := report.WriteCSV(csvPath, t, ""); err != nil {
		return nil, err
	}
	e.logger().Info("epic mapping complete", zap.String("output", csvPath), zap.Int("issues", len(keys)))
	return &Output{Rows: t.Len(), Files: []string{csvPath}}, nil
}

func buildSprintChanges(ctx context.Context, e *Env) (*Output, error) {
	input := e.Config.Reports.SprintChanges.Input
	if input == "" {
		input = e.path(epicMapCSV)
	}

	t, err := report.ReadCSV(input)
	if err != nil {
		return nil, fmt.Errorf("load stories: %w", err)
	}
	keys, err := report.UniqueValues(t, "key")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}

	history := report.NewTable("key", "from_sprint", "to_sprint")
	for _, key := range keys {
		from, to, err := lastSprintMove(ctx, e.Tracker, key)
		if err != nil {
			return nil, err
		}
		history.Append(key, from, to)
	}

	merged, err := report.LeftJoin(t, history, "key", "from_sprint", "to_sprint")
	if err != nil {
		return nil, err
	}

	csvPath := e.path(sprintChangesCSV)
	if err := report.WriteCSV(csvPath, merged, ""); err != nil {
		return nil, err
	}
	e.logger().Info("sprint transitions exported", zap.String("output", csvPath), zap.Int("issues", len(keys)))
	return &Output{Rows: merged.Len(), Files: []string{csvPath}}, nil
}

// lastSprintMove returns the from/to sprint names of the issue's most
// recent Sprint change. Both are empty when the issue cannot be read or
// never changed sprint.
func lastSprintMove(ctx context.Context, tr Tracker, key string) (from, to string, err error) {
	is, err := tr.GetIssue(ctx, key, nil, "changelog")
	if err != nil {
		if jira.StatusOf(err) == 0 {
			return "", "", fmt.Errorf("lookup %s: %w", key, err)
		}
		return "", "", nil
	}
	item, ok := is.Changelog.LastChange("Sprint")
	if !ok {
		return "", "", nil
	}
	return item.FromString, item.ToString, nil
}
