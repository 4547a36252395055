package reports

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
	"github.com/andywolf/sprintwatch/internal/slack"
)

const (
	slippingCSV   = "slipping_stories_report.csv"
	slippingChart = "slipping_stories_chart.png"

	// unassignedComponent labels stories without a component.
	unassignedComponent = "Unassigned"
)

const slippingExplanation = `*Slipping Stories Report*
This chart shows what %% of user stories were originally planned in a sprint but later moved to a new one.

*How this was calculated:*
- All open ` + "`Story`" + ` issues from project {{project}} were pulled from Jira
- The script looked at sprint history in the ` + "`%s`" + ` field
- If a story appeared in more than one sprint, it's counted as 'slipped'

*Why this matters:*
Frequent slipping = delivery risk, poor estimation, or cross-team blockers.`

var slippingReport = Report{
	Name:    "slipping",
	Short:   "Share of open stories per component that moved between sprints",
	Long:    "Counts, per tracked component, the open stories whose sprint field lists more than one sprint.",
	Project: true,
	Build:   buildSlipping,
}

type slippingRow struct {
	Component string
	Slipped   int
	Total     int
}

func (r slippingRow) percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return roundTo(float64(r.Slipped)/float64(r.Total)*100, 1)
}

func buildSlipping(ctx context.Context, e *Env) (*Output, error) {
	sprintField := e.Config.Jira.SprintField
	jql := fmt.Sprintf("project = %s AND issuetype = Story AND statusCategory != Done ORDER BY created DESC", e.Config.Jira.ProjectKey)

	issues, err := e.Tracker.Search(ctx, jql, jira.SearchOptions{
		Fields: []string{"key", "summary", "components", "status", sprintField},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch stories: %w", err)
	}

	rows := countSlips(issues, sprintField, e.Config.Reports.Slipping.Components)

	t := report.NewTable("Component", "Slipped Stories", "Total Stories", "Percent Slipped")
	bars := make([]chart.Value, len(rows))
	for i, r := range rows {
		t.Append(r.Component, strconv.Itoa(r.Slipped), strconv.Itoa(r.Total), formatOneDecimal(r.percent()))
		bars[i] = chart.Value{Label: r.Component, Value: r.percent()}
	}

	csvPath := e.path(slippingCSV)
	if err := report.WriteCSV(csvPath, t, ""); err != nil {
		return nil, err
	}
	out := &Output{Rows: t.Len(), Files: []string{csvPath}, Tolerant: true}

	chartPath, ok, err := e.writeChart(slippingChart, chart.Bar("Slipped Stories by Component", "Percent of Stories Slipped (%)", bars))
	if err != nil {
		return nil, err
	}
	if ok {
		out.Files = append(out.Files, chartPath)
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:    chartPath,
			Title:   "Slipping Stories Chart",
			Comment: fmt.Sprintf(slippingExplanation, sprintField),
		})
	}
	return out, nil
}

// countSlips tallies open and slipped stories per tracked component. A
// story slipped when its sprint field lists more than one sprint; it is
// counted under its first component. Components with no stories are left
// out and rows are ordered by slipped count, then by the tracked order.
func countSlips(issues []*jira.Issue, sprintField string, tracked []string) []slippingRow {
	index := make(map[string]int, len(tracked))
	rows := make([]slippingRow, len(tracked))
	for i, c := range tracked {
		index[c] = i
		rows[i].Component = c
	}

	for _, is := range issues {
		i, ok := index[is.Fields.FirstComponent(unassignedComponent)]
		if !ok {
			continue
		}
		rows[i].Total++
		if len(is.Fields.Sprints(sprintField)) > 1 {
			rows[i].Slipped++
		}
	}

	out := rows[:0]
	for _, r := range rows {
		if r.Total > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slipped > out[j].Slipped })
	return out
}
