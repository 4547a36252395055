package jira

import (
	"context"
	"net/url"
	"strconv"
)

// SearchOptions selects what a search returns.
type SearchOptions struct {
	Fields []string
	Expand string
	// MaxPages caps the number of pages fetched; zero means no cap.
	MaxPages int
}

// SearchPage is one page of /rest/api/3/search.
type SearchPage struct {
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	Total      int      `json:"total"`
	Issues     []*Issue `json:"issues"`
}

// SearchPage fetches a single page of issues matching jql.
func (c *Client) SearchPage(ctx context.Context, jql string, startAt, maxResults int, opts SearchOptions) (*SearchPage, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(maxResults))
	if len(opts.Fields) > 0 {
		q.Set("fields", joinFields(opts.Fields))
	}
	if opts.Expand != "" {
		q.Set("expand", opts.Expand)
	}

	var page SearchPage
	if err := c.getJSON(ctx, "search", "/rest/api/3/search", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Search returns every issue matching jql, following startAt pagination.
// Paging stops when a page comes back shorter than the page size or the
// reported total has been reached, so N issues cost max(1, ceil(N/P))
// requests. Any failed page aborts the whole search.
func (c *Client) Search(ctx context.Context, jql string, opts SearchOptions) ([]*Issue, error) {
	var all []*Issue
	startAt := 0

	for pages := 1; ; pages++ {
		page, err := c.SearchPage(ctx, jql, startAt, c.pageSize, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Issues...)

		n := len(page.Issues)
		if n < c.pageSize {
			break
		}
		if page.Total > 0 && startAt+n >= page.Total {
			break
		}
		if opts.MaxPages > 0 && pages >= opts.MaxPages {
			break
		}
		startAt += n
	}

	return all, nil
}
