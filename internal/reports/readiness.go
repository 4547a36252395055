package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/config"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
	"github.com/andywolf/sprintwatch/internal/slack"
)

const (
	readinessCSV   = "sprint_readiness_report.csv"
	readinessBar   = "sprint_readiness_chart.png"
	readinessPie   = "sprint_ticket_distribution.png"
	sprintIssueCap = 100
)

const readinessFooter = `Explanation:
This report compares the number of tickets in %s statuses from the current open sprint against the average team velocity from the last %d closed sprints.
The readiness percentage = (Ready tickets / Avg Velocity) * 100.
Helps identify if teams have enough refined work queued for the next sprint cycle.`

var readinessReport = Report{
	Name:  "readiness",
	Short: "Compare ready tickets per team with average sprint velocity",
	Long:  "For every configured board, counts ready tickets in the active sprint and compares them with the average completed story points of the last closed sprints.",
	Build: buildReadiness,
}

type readinessRow struct {
	Team     string
	Ready    int
	Velocity float64
	Percent  int
}

func buildReadiness(ctx context.Context, e *Env) (*Output, error) {
	cfg := e.Config.Reports.Readiness
	pointsField := e.Config.Jira.StoryPointsField
	if pointsField == "" {
		return nil, fmt.Errorf("jira story_points_field is required for the readiness report")
	}

	e.logger().Info("checking boards", zap.Strings("boards", boardNames(cfg.Boards)))
	var rows []readinessRow
	for _, b := range cfg.Boards {
		velocity, err := averageVelocity(ctx, e.Tracker, b.ID, cfg.VelocitySprints, pointsField)
		if err != nil {
			return nil, fmt.Errorf("%s velocity: %w", b.Name, err)
		}
		ready, err := readyTickets(ctx, e.Tracker, b.ID, cfg.ReadyStatuses)
		if err != nil {
			return nil, fmt.Errorf("%s ready tickets: %w", b.Name, err)
		}
		row := readinessRow{Team: b.Name, Ready: ready, Velocity: velocity, Percent: readinessPercent(ready, velocity)}
		e.logger().Debug("board readiness", zap.String("team", b.Name), zap.Int("ready", ready), zap.Float64("velocity", velocity))
		rows = append(rows, row)
	}

	t := report.NewTable("Team", "Tickets_Ready", "Avg_Velocity", "Readiness_%")
	for _, r := range rows {
		t.Append(r.Team, strconv.Itoa(r.Ready), formatOneDecimal(r.Velocity), strconv.Itoa(r.Percent))
	}

	statuses := quoteList(cfg.ReadyStatuses, "`")
	csvPath := e.path(readinessCSV)
	if err := report.WriteCSV(csvPath, t, fmt.Sprintf(readinessFooter, strings.Join(statuses, " and "), cfg.VelocitySprints)); err != nil {
		return nil, err
	}
	out := &Output{Rows: t.Len(), Files: []string{csvPath}}

	sorted := append([]readinessRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Percent > sorted[j].Percent })
	bars := make([]chart.Value, len(sorted))
	for i, r := range sorted {
		bars[i] = chart.Value{Label: r.Team, Value: float64(r.Percent)}
	}
	slices := make([]chart.Value, len(rows))
	for i, r := range rows {
		slices[i] = chart.Value{Label: r.Team, Value: float64(r.Ready)}
	}

	const barTitle = "Sprint Readiness by Team (% of Avg Velocity)"
	barPath, ok, err := e.writeChart(readinessBar, chart.Bar(barTitle, "Readiness %", bars))
	if err != nil {
		return nil, err
	}
	if ok {
		out.Files = append(out.Files, barPath)
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:  barPath,
			Title: barTitle,
			Comment: chartComment(barTitle, fmt.Sprintf(
				"This bar chart shows how many tickets are ready (%s) per team compared to average sprint velocity over the past %d sprints. A higher %% means the team has a refined backlog ready to tackle.",
				strings.Join(cfg.ReadyStatuses, " + "), cfg.VelocitySprints)),
		})
	}

	const pieTitle = "Ready Ticket Distribution by Team"
	piePath, ok, err := e.writeChart(readinessPie, chart.Pie(pieTitle, slices))
	if err != nil {
		return nil, err
	}
	if ok {
		out.Files = append(out.Files, piePath)
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:    piePath,
			Title:   pieTitle,
			Comment: chartComment(pieTitle, "This pie chart shows how the total number of ready tickets is distributed across teams. Helps identify which teams may be underprepared or overcommitted."),
		})
	}

	out.Message = "*📦 Sprint Readiness Report*\n" +
		slack.CodeBlock(t.Text()) + "\n" +
		fmt.Sprintf("This report shows how many stories are ready (%s) compared to average team velocity across the last %d sprints.",
			strings.Join(statuses, ", "), cfg.VelocitySprints)
	return out, nil
}

// averageVelocity is the mean of done story points over the last n closed
// sprints of a board, rounded to one decimal. A board without closed
// sprints has velocity 0.
func averageVelocity(ctx context.Context, tr Tracker, boardID, n int, pointsField string) (float64, error) {
	sprints, err := tr.ListSprints(ctx, boardID, jira.SprintClosed)
	if err != nil {
		return 0, err
	}
	if len(sprints) > n {
		sprints = sprints[len(sprints)-n:]
	}
	if len(sprints) == 0 {
		return 0, nil
	}

	total := 0.0
	for _, s := range sprints {
		issues, err := tr.SprintIssues(ctx, s.ID, sprintIssueCap, []string{"status", pointsField})
		if err != nil {
			return 0, err
		}
		for _, is := range issues {
			if is.Fields.Status.StatusCategory.Key == "done" {
				total += is.Fields.Number(pointsField)
			}
		}
	}
	return roundTo(total/float64(len(sprints)), 1), nil
}

// readyTickets counts issues of the board's first active sprint whose
// status is one of ready.
func readyTickets(ctx context.Context, tr Tracker, boardID int, ready []string) (int, error) {
	sprints, err := tr.ListSprints(ctx, boardID, jira.SprintActive)
	if err != nil {
		return 0, err
	}
	if len(sprints) == 0 {
		return 0, nil
	}

	issues, err := tr.SprintIssues(ctx, sprints[0].ID, sprintIssueCap, []string{"status"})
	if err != nil {
		return 0, err
	}

	want := make(map[string]bool, len(ready))
	for _, s := range ready {
		want[s] = true
	}
	count := 0
	for _, is := range issues {
		if want[is.Fields.Status.Name] {
			count++
		}
	}
	return count, nil
}

func readinessPercent(ready int, velocity float64) int {
	if velocity == 0 {
		return 0
	}
	return int(math.Round(float64(ready) / velocity * 100))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func formatOneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quoteList(items []string, quote string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = quote + s + quote
	}
	return out
}

// boardNames lists board names for log fields.
func boardNames(boards []config.Board) []string {
	names := make([]string, len(boards))
	for i, b := range boards {
		names[i] = b.Name
	}
	return names
}
