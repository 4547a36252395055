package jira

import (
	"encoding/json"
	"strings"
)

// Issue is a tracker issue as returned by search and issue endpoints.
type Issue struct {
	ID        string     `json:"id"`
	Key       string     `json:"key"`
	Fields    Fields     `json:"fields"`
	Changelog *Changelog `json:"changelog,omitempty"`
}

// Fields holds the issue fields the reports use. Custom fields (story
// points, sprint, epic link) have site-specific ids and are kept raw.
type Fields struct {
	Summary    string      `json:"summary"`
	Status     Status      `json:"status"`
	IssueType  *IssueType  `json:"issuetype,omitempty"`
	Assignee   *User       `json:"assignee,omitempty"`
	Components []Component `json:"components"`
	IssueLinks []IssueLink `json:"issuelinks"`

	Custom map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and keeps every customfield_*
// value for later lookup.
func (f *Fields) UnmarshalJSON(data []byte) error {
	type plain Fields
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if !strings.HasPrefix(k, "customfield_") {
			continue
		}
		if p.Custom == nil {
			p.Custom = make(map[string]json.RawMessage)
		}
		p.Custom[k] = v
	}

	*f = Fields(p)
	return nil
}

// Number reads a numeric custom field. Missing, null or non-numeric values
// are reported as 0.
func (f Fields) Number(field string) float64 {
	raw, ok := f.Custom[field]
	if !ok {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0
	}
	return n
}

// Text reads a string custom field ("" when missing or not a string).
func (f Fields) Text(field string) string {
	raw, ok := f.Custom[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Sprints reads a sprint custom field, which holds every sprint the
// issue has been part of.
func (f Fields) Sprints(field string) []Sprint {
	raw, ok := f.Custom[field]
	if !ok {
		return nil
	}
	var sprints []Sprint
	if err := json.Unmarshal(raw, &sprints); err != nil {
		return nil
	}
	return sprints
}

// FirstComponent returns the name of the first component, or fallback
// when the issue has none.
func (f Fields) FirstComponent(fallback string) string {
	if len(f.Components) == 0 {
		return fallback
	}
	return f.Components[0].Name
}

// ComponentNames joins all component names with ", ", or returns fallback.
func (f Fields) ComponentNames(fallback string) string {
	if len(f.Components) == 0 {
		return fallback
	}
	names := make([]string, len(f.Components))
	for i, c := range f.Components {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// AssigneeName returns the assignee display name or "Unassigned".
func (f Fields) AssigneeName() string {
	if f.Assignee == nil || f.Assignee.DisplayName == "" {
		return "Unassigned"
	}
	return f.Assignee.DisplayName
}

type Status struct {
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name"`
	StatusCategory StatusCategory `json:"statusCategory"`
}

type StatusCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type IssueType struct {
	Name string `json:"name"`
}

type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type Component struct {
	Name string `json:"name"`
}

// IssueLink is one entry of the issuelinks field. Exactly one of
// InwardIssue and OutwardIssue is normally set.
type IssueLink struct {
	ID           string       `json:"id,omitempty"`
	Type         LinkType     `json:"type"`
	InwardIssue  *LinkedIssue `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssue `json:"outwardIssue,omitempty"`
}

type LinkType struct {
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// LinkedIssue is the abbreviated issue embedded in a link.
type LinkedIssue struct {
	Key    string       `json:"key"`
	Fields LinkedFields `json:"fields"`
}

type LinkedFields struct {
	Summary    string      `json:"summary"`
	Status     Status      `json:"status"`
	Components []Component `json:"components"`
}

// FirstComponent returns the first component name of the linked issue.
func (f LinkedFields) FirstComponent(fallback string) string {
	if len(f.Components) == 0 {
		return fallback
	}
	return f.Components[0].Name
}

// Sprint as returned by the agile API and embedded in the sprint field.
type Sprint struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	StartDate    string `json:"startDate,omitempty"`
	EndDate      string `json:"endDate,omitempty"`
	CompleteDate string `json:"completeDate,omitempty"`
}

// Changelog is returned when an issue is fetched with expand=changelog.
type Changelog struct {
	Histories []History `json:"histories"`
}

type History struct {
	ID      string        `json:"id"`
	Created string        `json:"created"`
	Items   []HistoryItem `json:"items"`
}

type HistoryItem struct {
	Field      string `json:"field"`
	FromString string `json:"fromString"`
	ToString   string `json:"toString"`
}

// LastChange returns the most recent history item for field.
func (c *Changelog) LastChange(field string) (HistoryItem, bool) {
	if c == nil {
		return HistoryItem{}, false
	}
	var last HistoryItem
	found := false
	for _, h := range c.Histories {
		for _, item := range h.Items {
			if item.Field == field {
				last = item
				found = true
			}
		}
	}
	return last, found
}

type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// IssueTypeStatuses groups the statuses available to one issue type.
type IssueTypeStatuses struct {
	Name     string   `json:"name"`
	Statuses []Status `json:"statuses"`
}

type Field struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
}
