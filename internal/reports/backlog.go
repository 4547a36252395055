package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/depgraph"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
	"github.com/andywolf/sprintwatch/internal/slack"
)

const (
	backlogCSV   = "backlog_health_report.csv"
	backlogChart = "backlog_health_by_component.png"
)

var backlogReport = Report{
	Name:    "backlog",
	Short:   "Unrefined backlog tickets grouped by component and status",
	Long:    "Lists every ticket in the configured backlog statuses (New and Grooming by default) and charts them per component.",
	Project: true,
	Build:   buildBacklog,
}

func backlogJQL(project string, statuses []string) string {
	return fmt.Sprintf("project = %s AND status in (%s)", project, strings.Join(quoteList(statuses, `"`), ", "))
}

func buildBacklog(ctx context.Context, e *Env) (*Output, error) {
	statuses := e.Config.Reports.Backlog.Statuses

	issues, err := e.Tracker.Search(ctx, backlogJQL(e.Config.Jira.ProjectKey, statuses), jira.SearchOptions{
		Fields: []string{"key", "summary", "status", "assignee", "components"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch backlog: %w", err)
	}

	t := report.NewTable("Key", "Summary", "Status", "Component", "Assignee")
	for _, is := range issues {
		t.Append(is.Key, is.Fields.Summary, is.Fields.Status.Name, is.Fields.ComponentNames(depgraph.NoComponent), is.Fields.AssigneeName())
	}

	csvPath := e.path(backlogCSV)
	if err := report.WriteCSV(csvPath, t, ""); err != nil {
		return nil, err
	}
	out := &Output{Rows: t.Len(), Files: []string{csvPath}, Tolerant: true}

	chartPath, ok, err := e.writeChart(backlogChart, chart.StackedBar("Backlog Health by Component", backlogStacks(t)))
	if err != nil {
		return nil, err
	}
	if ok {
		out.Files = append(out.Files, chartPath)
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:    chartPath,
			Title:   "Backlog Health Chart",
			Comment: "📊 Here's the chart visual from the backlog health report:",
		})
	}

	out.Message = "*🧹 Backlog Health Report: `{{project}}`*\n" +
		slack.CodeBlock(fmt.Sprintf("Total issues: %d\nStatuses included: %s\nCSV: %s\nChart: %s",
			t.Len(), strings.Join(statuses, ", "), backlogCSV, backlogChart)) + "\n" +
		fmt.Sprintf("👉 This report shows all tickets in %s status, grouped by Component. ",
			strings.Join(quoteList(statuses, "*"), " or ")) +
		"Use it to identify unrefined or unassigned work early in the pipeline."
	return out, nil
}

// backlogStacks pivots the backlog into one stack per component with a
// segment per status. Components and statuses are sorted by name.
func backlogStacks(t *report.Table) []chart.Stack {
	ci, si := t.Column("Component"), t.Column("Status")
	counts := map[string]map[string]int{}
	statusSet := map[string]bool{}
	for _, row := range t.Rows {
		comp, status := row[ci], row[si]
		if counts[comp] == nil {
			counts[comp] = map[string]int{}
		}
		counts[comp][status]++
		statusSet[status] = true
	}

	components := sortedKeys(counts)
	statuses := make([]string, 0, len(statusSet))
	for s := range statusSet {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	stacks := make([]chart.Stack, len(components))
	for i, comp := range components {
		stacks[i].Label = comp
		for _, s := range statuses {
			stacks[i].Segments = append(stacks[i].Segments, chart.Value{Label: s, Value: float64(counts[comp][s])})
		}
	}
	return stacks
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
