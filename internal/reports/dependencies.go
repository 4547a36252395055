package reports

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/andywolf/sprintwatch/internal/chart"
	"github.com/andywolf/sprintwatch/internal/depgraph"
	"github.com/andywolf/sprintwatch/internal/jira"
	"github.com/andywolf/sprintwatch/internal/report"
	"github.com/andywolf/sprintwatch/internal/slack"
)

const (
	dependencyCSV   = "dependency_status_report.csv"
	dependencyGraph = "dependency_graph.png"
)

const dependencyFooter = `Explanation: This report maps issue-to-issue dependencies across the {{project}} project.
Only non-Done issues are included. Dependencies include 'blocks' and 'is blocked by' links.
Used to identify chain-of-blockage and cross-team blockers.`

var dependencyFields = []string{"key", "status", "issuelinks", "components"}

var dependenciesReport = Report{
	Name:    "dependencies",
	Short:   "Map issue-to-issue dependencies and draw the dependency graph",
	Long:    "Fetches every open issue of the project, writes one CSV row per issue link and posts a directed dependency graph.",
	Project: true,
	Build:   buildDependencies,
}

// dependencyJQL selects the project's open issues.
func dependencyJQL(project, statusFilter string) string {
	jql := "project = " + project
	if statusFilter = strings.TrimSpace(statusFilter); statusFilter != "" {
		jql += " AND " + statusFilter
	}
	return jql
}

func buildDependencies(ctx context.Context, e *Env) (*Output, error) {
	cfg := e.Config
	jql := dependencyJQL(cfg.Jira.ProjectKey, cfg.Reports.Dependencies.StatusFilter)

	issues, err := e.Tracker.Search(ctx, jql, jira.SearchOptions{Fields: dependencyFields})
	if err != nil {
		return nil, fmt.Errorf("fetch issues: %w", err)
	}

	rows := depgraph.Extract(issues)
	g := depgraph.Build(rows)

	t := report.NewTable(depgraph.Header...)
	cross := 0
	for _, r := range rows {
		t.Append(r.Record()...)
		if r.CrossComponent() {
			cross++
		}
	}

	csvPath := e.path(dependencyCSV)
	if err := report.WriteCSV(csvPath, t, e.render(dependencyFooter)); err != nil {
		return nil, err
	}
	out := &Output{Rows: len(rows), Files: []string{csvPath}}

	cycles := g.Cycles()
	e.logger().Info("dependencies extracted",
		zap.Int("issues", len(issues)),
		zap.Int("links", len(rows)),
		zap.Int("nodes", g.Len()),
		zap.Int("edges", g.EdgeCount()),
		zap.Int("cross_component", cross),
		zap.Int("cycles", len(cycles)),
	)

	graphPath, ok, err := e.writeChart(dependencyGraph, chart.Graph(e.render("{{project}} Dependency Graph"), g, depgraph.Layout(g)))
	if err != nil {
		return nil, err
	}

	out.Message = dependencyMessage(len(rows), g.Len(), cross, cycles)
	if ok {
		out.Files = append(out.Files, graphPath)
		title := "{{project}} Issue Dependency Graph"
		out.Uploads = append(out.Uploads, slack.Upload{
			Path:    graphPath,
			Title:   title,
			Comment: chartComment(title, "This network graph shows issue-to-issue dependencies (directional). Only active dependencies are shown."),
		})
	}
	return out, nil
}

const maxListedCycles = 10

// dependencyMessage lists cycles as paths from depgraph.Graph.Cycles,
// closing each back on its first key.
func dependencyMessage(links, issues, cross int, cycles [][]string) string {
	var b strings.Builder
	b.WriteString("*🔗 {{project}} Dependency Status Report*\n")
	b.WriteString("See which issues are currently blocked by others.\n")
	fmt.Fprintf(&b, "%d links between %d issues, %d across components.", links, issues, cross)
	if len(cycles) > 0 {
		b.WriteString("\n⚠️ Circular dependencies:")
		for i, c := range cycles {
			if i == maxListedCycles {
				fmt.Fprintf(&b, "\n…and %d more", len(cycles)-maxListedCycles)
				break
			}
			b.WriteString("\n• " + strings.Join(c, " → ") + " → " + c[0])
		}
	}
	return b.String()
}
