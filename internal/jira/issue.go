package jira

import (
	"context"
	"net/url"
	"strings"
)

// GetIssue fetches one issue. fields and expand are optional.
func (c *Client) GetIssue(ctx context.Context, key string, fields []string, expand string) (*Issue, error) {
	q := url.Values{}
	if len(fields) > 0 {
		q.Set("fields", joinFields(fields))
	}
	if expand != "" {
		q.Set("expand", expand)
	}

	var issue Issue
	if err := c.getJSON(ctx, "get issue", "/rest/api/3/issue/"+url.PathEscape(key), q, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Myself returns the authenticated user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var u User
	if err := c.getJSON(ctx, "myself", "/rest/api/3/myself", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Projects lists the projects visible to the authenticated user.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.getJSON(ctx, "list projects", "/rest/api/3/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Project returns a single project.
func (c *Client) Project(ctx context.Context, key string) (*Project, error) {
	var p Project
	if err := c.getJSON(ctx, "get project", "/rest/api/3/project/"+url.PathEscape(key), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProjectStatuses lists statuses per issue type of a project.
func (c *Client) ProjectStatuses(ctx context.Context, key string) ([]IssueTypeStatuses, error) {
	var out []IssueTypeStatuses
	if err := c.getJSON(ctx, "project statuses", "/rest/api/3/project/"+url.PathEscape(key)+"/statuses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fields lists all system and custom fields.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if err := c.getJSON(ctx, "list fields", "/rest/api/3/field", nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// FilterFields returns the fields whose name contains substr, case
// insensitively.
func FilterFields(fields []Field, substr string) []Field {
	substr = strings.ToLower(substr)
	var out []Field
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f.Name), substr) {
			out = append(out, f)
		}
	}
	return out
}

func joinFields(fields []string) string {
	return strings.Join(fields, ",")
}
