// Package depgraph turns tracker issue links into report rows and a
// directed dependency graph.
package depgraph

import (
	"github.com/andywolf/sprintwatch/internal/jira"
)

// Direction labels a link relative to the issue that carries it.
type Direction string

const (
	// DependsOn is assigned to links carrying an inwardIssue.
	DependsOn Direction = "depends on"
	// Blocks is assigned to links carrying an outwardIssue.
	Blocks Direction = "blocks"
)

// NoComponent is the label for issues without components.
const NoComponent = "None"

// Header is the column order of the dependency CSV.
var Header = []string{"Issue", "Status", "Component", "Depends On", "Dependency Status", "Dependency Component"}

// Relation is one row of the dependency report: an issue and the issue on
// the other side of one of its links.
type Relation struct {
	Issue               string
	Status              string
	Component           string
	DependsOn           string
	DependencyStatus    string
	DependencyComponent string

	// Direction is kept in memory only; it is not a CSV column.
	Direction Direction
}

// Record returns the row in Header order.
func (r Relation) Record() []string {
	return []string{r.Issue, r.Status, r.Component, r.DependsOn, r.DependencyStatus, r.DependencyComponent}
}

// CrossComponent reports whether both ends belong to different components.
func (r Relation) CrossComponent() bool {
	return r.Component != r.DependencyComponent
}

// Extract produces one Relation per link per issue, in fetch order. Links
// with neither an inward nor an outward issue are skipped, so issues
// without links contribute nothing. Status and component of the linked
// issue come from the embedded link payload only; no extra fetch is made.
// Duplicate links yield duplicate rows.
func Extract(issues []*jira.Issue) []Relation {
	var rows []Relation
	for _, issue := range issues {
		if issue == nil {
			continue
		}
		component := issue.Fields.FirstComponent(NoComponent)

		for _, link := range issue.Fields.IssueLinks {
			linked, dir := resolve(link)
			if linked == nil {
				continue
			}
			rows = append(rows, Relation{
				Issue:               issue.Key,
				Status:              issue.Fields.Status.Name,
				Component:           component,
				DependsOn:           linked.Key,
				DependencyStatus:    linked.Fields.Status.Name,
				DependencyComponent: linked.Fields.FirstComponent(NoComponent),
				Direction:           dir,
			})
		}
	}
	return rows
}

// resolve picks the linked side of a link. inwardIssue takes precedence,
// so a link is never assigned both directions.
func resolve(link jira.IssueLink) (*jira.LinkedIssue, Direction) {
	switch {
	case link.InwardIssue != nil:
		return link.InwardIssue, DependsOn
	case link.OutwardIssue != nil:
		return link.OutwardIssue, Blocks
	default:
		return nil, ""
	}
}
