package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
	"github.com/andywolf/sprintwatch/internal/slack"
)

const (
	epicSlipsCSV   = "slipped_stories_under_epics.csv"
	epicSlipsChart = "slipped_stories_chart.png"

	// epicPageSize is the single page read per epic.
	epicPageSize = 100
)

// slipColumns are carried over from the slipped-stories CSV when present.
var slipColumns = []string{"times_moved", "last_moved"}

var slippedByEpicReport = Report{
	Name:    "slipped-by-epic",
	Short:   "Slipped stories under the configured epics",
	Long:    "Lists the stories of each configured epic that appear in the slipped-stories CSV, with how often and when they moved.",
	Project: true,
	Build:   buildSlippedByEpic,
}

func buildSlippedByEpic(ctx context.Context, e *Env) (*Output, error) {
	cfg := e.Config.Reports
	if len(cfg.Epics.Keys) == 0 {
		return nil, fmt.Errorf("reports.epics.keys is empty")
	}

	slips, err := report.ReadCSV(cfg.SlippedCSV)
	if err != nil {
		return nil, fmt.Errorf("load slipped stories: %w", err)
	}
	slipped := report.KeySet{}
	keys, err := slips.Values("key")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.SlippedCSV, err)
	}
	for _, k := range keys {
		if k = report.NormalizeKey(k); k != "" {
			slipped[k] = struct{}{}
		}
	}

	stories := report.NewTable("key", "summary", "assignee", "component", "epic")
	for _, epic := range cfg.Epics.Keys {
		issues, err := epicStories(ctx, e.Tracker, e.Config.Jira.ProjectKey, epic)
		if err != nil {
			return nil, fmt.Errorf("stories of %s: %w", epic, err)
		}
		for _, is := range issues {
			if !slipped.Has(is.Key) {
				continue
			}
			stories.Append(is.Key, is.Fields.Summary, is.Fields.AssigneeName(), is.Fields.ComponentNames(""), epic)
		}
	}

	var carry []string
	for _, c := range slipColumns {
		if slips.Column(c) >= 0 {
			carry = append(carry, c)
		}
	}
	t, err := report.LeftJoin(stories, slips, "key", carry...)
	if err != nil {
		return nil, err
	}

	csvPath := e.path(epicSlipsCSV)
	if err := report.WriteCSV(csvPath, t, ""); err != nil {
		return nil, err
	}
	out := &Output{Rows: t.Len(), Files: []string{csvPath}}

	chartPath, ok, err := e.writeChart(epicSlipsChart, chart.Bar("Slipped Stories by Epic", "Count", countByEpic(stories)))
	if err != nil {
		return nil, err
	}
	if ok {
		out.Files = append(out.Files, chartPath)
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:    chartPath,
			Title:   "Slipped Stories Chart",
			Comment: "📊 Slipped stories per Epic",
		})
	}

	summary, err := t.Select("key", "epic", "assignee")
	if err != nil {
		return nil, err
	}
	out.Message = "*📦 Slipped Stories by Epic*\n" +
		fmt.Sprintf("The following stories under Epics %s were moved between sprints:\n", strings.Join(quoteList(cfg.Epics.Keys, "`"), ", ")) +
		slack.CodeBlock(summary.Text()) + "\n" +
		"_This chart shows the number of slipped stories per Epic._"
	return out, nil
}

// epicStories reads one page of the epic's stories.
func epicStories(ctx context.Context, tr Tracker, project, epic string) ([]*jira.Issue, error) {
	jql := fmt.Sprintf(`project = %s AND issuetype = Story AND "Epic Link" = %s`, project, epic)
	page, err := tr.SearchPage(ctx, jql, 0, epicPageSize, jira.SearchOptions{
		Fields: []string{"summary", "assignee", "components"},
	})
	if err != nil {
		return nil, err
	}
	return page.Issues, nil
}

// countByEpic counts rows per epic, most slipped first.
func countByEpic(t *report.Table) []chart.Value {
	epics, _ := t.Values("epic")
	counts := map[string]int{}
	var order []string
	for _, epic := range epics {
		if counts[epic] == 0 {
			order = append(order, epic)
		}
		counts[epic]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	values := make([]chart.Value, len(order))
	for i, epic := range order {
		values[i] = chart.Value{Label: epic, Value: float64(counts[epic])}
	}
	return values
}
