package events

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestJournal_PublishAndRead(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir)
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}
	if want := filepath.Join(dir, JournalFilename); j.Path() != want {
		t.Errorf("Path() = %q, want %q", j.Path(), want)
	}

	ts := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	written := []ReportEvent{
		{
			Timestamp: ts,
			RunID:     "run-1",
			Type:      EventCompleted,
			Report:    "dependencies",
			Project:   "CLP",
			Rows:      42,
			Artifacts: []string{"dependency_status_report.csv", "dependency_graph.png"},
			Published: true,
		},
		{
			Timestamp: ts,
			RunID:     "run-2",
			Type:      EventFailed,
			Report:    "backlog",
			Error:     "jira search: unexpected status 401",
		},
	}
	for _, e := range written {
		if err := j.Publish(context.Background(), e); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := ReadJournal(j.Path(), Query{})
	if err != nil {
		t.Fatalf("ReadJournal() error = %v", err)
	}
	if diff := cmp.Diff(written, got); diff != "" {
		t.Errorf("ReadJournal() mismatch (-want +got):\n%s", diff)
	}
}

func TestJournal_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"first", "second"} {
		j, err := NewJournal(dir)
		if err != nil {
			t.Fatal(err)
		}
		if err := j.Publish(context.Background(), ReportEvent{RunID: id, Type: EventCompleted}); err != nil {
			t.Fatal(err)
		}
		if err := j.Close(); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ReadJournal(filepath.Join(dir, JournalFilename), Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].RunID != "first" || got[1].RunID != "second" {
		t.Errorf("entries = %+v", got)
	}
}

func TestJournal_Closed(t *testing.T) {
	j, err := NewJournal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := j.Publish(context.Background(), ReportEvent{}); err == nil {
		t.Error("Publish() after Close error = nil, want error")
	}
}

func TestNewJournal_MissingDir(t *testing.T) {
	if _, err := NewJournal(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("NewJournal(missing dir) error = nil, want error")
	}
}

func TestReadJournal_Query(t *testing.T) {
	path := filepath.Join(t.TempDir(), JournalFilename)
	lines := `{"run_id":"1","type":"report.completed","report":"dependencies"}
{"run_id":"2","type":"report.failed","report":"readiness"}

{"run_id":"3","type":"report.completed","report":"readiness"}
{"run_id":"4","type":"report.completed","report":"readiness"}
`
	if err := os.WriteFile(path, []byte(lines), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"1", "2", "3", "4"}},
		{"by report", Query{Report: "readiness"}, []string{"2", "3", "4"}},
		{"by type", Query{Types: []EventType{EventFailed}}, []string{"2"}},
		{"report and type", Query{Report: "readiness", Types: []EventType{EventCompleted}}, []string{"3", "4"}},
		{"last", Query{Last: 2}, []string{"3", "4"}},
		{"last larger than matches", Query{Report: "dependencies", Last: 5}, []string{"1"}},
		{"no match", Query{Report: "backlog"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadJournal(path, tt.q)
			if err != nil {
				t.Fatalf("ReadJournal() error = %v", err)
			}
			var ids []string
			for _, e := range got {
				ids = append(ids, e.RunID)
			}
			if diff := cmp.Diff(tt.want, ids); diff != "" {
				t.Errorf("run ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadJournal_Errors(t *testing.T) {
	got, err := ReadJournal(filepath.Join(t.TempDir(), "none.jsonl"), Query{})
	if err != nil || got != nil {
		t.Errorf("missing journal = %v, %v; want nil, nil", got, err)
	}

	path := filepath.Join(t.TempDir(), "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"run_id\":\"1\"}\nnot json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJournal(path, Query{}); err == nil {
		t.Error("ReadJournal(invalid) error = nil, want error")
	}
}
