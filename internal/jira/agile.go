package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// Sprint states accepted by ListSprints
const (
	SprintActive = "active"
	SprintClosed = "closed"
	SprintFuture = "future"
)

type sprintPage struct {
	MaxResults int      `json:"maxResults"`
	StartAt    int      `json:"startAt"`
	IsLast     bool     `json:"isLast"`
	Values     []Sprint `json:"values"`
}

// ListSprints returns the board's sprints in the given state, oldest first.
func (c *Client) ListSprints(ctx context.Context, boardID int, state string) ([]Sprint, error) {
	path := fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", boardID)

	var all []Sprint
	startAt := 0
	for {
		q := url.Values{}
		if state != "" {
			q.Set("state", state)
		}
		q.Set("startAt", strconv.Itoa(startAt))

		var page sprintPage
		if err := c.getJSON(ctx, "list sprints", path, q, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Values...)

		if page.IsLast || len(page.Values) == 0 {
			break
		}
		startAt += len(page.Values)
	}
	return all, nil
}

// SprintIssues returns the first page (up to maxResults) of a sprint's issues.
func (c *Client) SprintIssues(ctx context.Context, sprintID, maxResults int, fields []string) ([]*Issue, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(maxResults))
	if len(fields) > 0 {
		q.Set("fields", joinFields(fields))
	}

	var page SearchPage
	path := fmt.Sprintf("/rest/agile/1.0/sprint/%d/issue", sprintID)
	if err := c.getJSON(ctx, "sprint issues", path, q, &page); err != nil {
		return nil, err
	}
	return page.Issues, nil
}

// SprintReport is the subset of the greenhopper sprint report used for
// planned vs. completed points.
type SprintReport struct {
	Contents struct {
		CompletedIssues                   []ReportIssue `json:"completedIssues"`
		IssuesNotCompletedInCurrentSprint []ReportIssue `json:"issuesNotCompletedInCurrentSprint"`
	} `json:"contents"`
	Sprint Sprint `json:"sprint"`
}

// ReportIssue is an issue entry inside a sprint report.
type ReportIssue struct {
	Key               string `json:"key"`
	EstimateStatistic *struct {
		StatFieldValue struct {
			Value *float64 `json:"value"`
		} `json:"statFieldValue"`
	} `json:"estimateStatistic,omitempty"`
}

// Estimate returns the issue's estimate in the report, 0 when absent.
func (r ReportIssue) Estimate() float64 {
	if r.EstimateStatistic == nil || r.EstimateStatistic.StatFieldValue.Value == nil {
		return 0
	}
	return *r.EstimateStatistic.StatFieldValue.Value
}

// GetSprintReport fetches the sprint report for one sprint of a board.
func (c *Client) GetSprintReport(ctx context.Context, boardID, sprintID int) (*SprintReport, error) {
	q := url.Values{}
	q.Set("rapidViewId", strconv.Itoa(boardID))
	q.Set("sprintId", strconv.Itoa(sprintID))

	var report SprintReport
	if err := c.getJSON(ctx, "sprint report", "/rest/greenhopper/1.0/rapid/charts/sprintreport", q, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
