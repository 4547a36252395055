package reports

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
	"github.com/andywolf/sprintwatch/internal/slack"
)

const (
	completionCSV   = "sprint_completion_report.csv"
	completionChart = "sprint_completion_chart.png"

	// excludedLogLimit caps how many excluded keys are logged per team.
	excludedLogLimit = 10
)

const completionFooter = `Explanation:
Only includes stories committed at sprint start and not removed or slipped to future sprints.
• Slipped stories were excluded using ` + "`%s`" + `
• Completion %% = (Completed Story Points / Planned) * 100`

var completionReport = Report{
	Name:  "completion",
	Short: "Planned vs. completed story points per team, slipped stories excluded",
	Long:  "Reads the sprint reports of recent closed sprints for every configured board and compares planned with completed points, leaving out stories listed in the slipped-stories CSV.",
	Build: buildCompletion,
}

type completionRow struct {
	Team      string
	Planned   float64
	Completed float64
	Percent   float64
	Excluded  []string
}

func buildCompletion(ctx context.Context, e *Env) (*Output, error) {
	cfg := e.Config.Reports

	slipped, err := report.LoadKeySet(cfg.SlippedCSV, "key")
	if err != nil {
		e.logger().Warn("slipped stories not loaded, nothing will be excluded",
			zap.String("path", cfg.SlippedCSV), zap.Error(err))
	}

	e.logger().Info("checking boards", zap.Strings("boards", boardNames(cfg.Completion.Boards)))
	var rows []completionRow
	for _, b := range cfg.Completion.Boards {
		row, err := boardCompletion(ctx, e.Tracker, b.ID, slipped)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name, err)
		}
		row.Team = b.Name

		shown := row.Excluded
		if len(shown) > excludedLogLimit {
			shown = shown[:excludedLogLimit]
		}
		e.logger().Info("team completion",
			zap.String("team", b.Name),
			zap.Float64("planned", row.Planned),
			zap.Float64("completed", row.Completed),
			zap.Float64("percent", row.Percent),
			zap.Int("excluded", len(row.Excluded)),
			zap.Strings("excluded_keys", shown),
		)
		rows = append(rows, row)
	}

	t := report.NewTable("Team", "Planned Points", "Completed Points", "Completion %")
	bars := make([]chart.Value, 0, len(rows))
	for _, r := range rows {
		t.Append(r.Team, formatPoints(r.Planned), formatPoints(r.Completed), formatOneDecimal(r.Percent))
		bars = append(bars, chart.Value{Label: r.Team, Value: r.Percent})
	}

	csvPath := e.path(completionCSV)
	if err := report.WriteCSV(csvPath, t, fmt.Sprintf(completionFooter, filepath.Base(cfg.SlippedCSV))); err != nil {
		return nil, err
	}
	out := &Output{Rows: t.Len(), Files: []string{csvPath}}

	chartPath, ok, err := e.writeChart(completionChart, chart.Bar("Sprint Completion by Team (Slipped Stories Excluded)", "Completion %", bars))
	if err != nil {
		return nil, err
	}
	if ok {
		out.Files = append(out.Files, chartPath)
		title := "Sprint Completion by Team (No Slips)"
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:    chartPath,
			Title:   title,
			Comment: chartComment(title, "This chart reflects true sprint execution by removing all stories that were moved to later sprints."),
		})
	}

	out.Message = "*🎯 Sprint Completion Report*\n" +
		slack.CodeBlock(t.Text()) + "\n" +
		"_Stories that were moved to future sprints were excluded to ensure accuracy._"
	return out, nil
}

// completionWindow picks the sprints to score: the three before the most
// recent closed sprint when at least four exist, otherwise all of them.
func completionWindow(sprints []jira.Sprint) []jira.Sprint {
	n := len(sprints)
	if n >= 4 {
		return sprints[n-4 : n-1]
	}
	return sprints
}

// boardCompletion sums planned (completed + not completed) and completed
// estimates over the board's sprint window, skipping slipped keys.
func boardCompletion(ctx context.Context, tr Tracker, boardID int, slipped report.KeySet) (completionRow, error) {
	var row completionRow

	sprints, err := tr.ListSprints(ctx, boardID, jira.SprintClosed)
	if err != nil {
		return row, err
	}

	for _, s := range completionWindow(sprints) {
		sr, err := tr.GetSprintReport(ctx, boardID, s.ID)
		if err != nil {
			return row, err
		}
		for _, is := range sr.Contents.CompletedIssues {
			if slipped.Has(is.Key) {
				row.Excluded = append(row.Excluded, is.Key)
				continue
			}
			row.Planned += is.Estimate()
			row.Completed += is.Estimate()
		}
		for _, is := range sr.Contents.IssuesNotCompletedInCurrentSprint {
			if slipped.Has(is.Key) {
				row.Excluded = append(row.Excluded, is.Key)
				continue
			}
			row.Planned += is.Estimate()
		}
	}

	if row.Planned > 0 {
		row.Percent = roundTo(row.Completed/row.Planned*100, 1)
	}
	return row, nil
}
