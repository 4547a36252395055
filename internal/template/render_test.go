package template

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		variables map[string]string
		want      string
	}{
		{
			name:      "empty text",
			text:      "",
			variables: map[string]string{"project": "CLP"},
			want:      "",
		},
		{
			name: "no variables",
			text: "Dependency Status Report",
			want: "Dependency Status Report",
		},
		{
			name:      "empty variables map",
			text:      "{{project}} Dependency Graph",
			variables: map[string]string{},
			want:      "{{project}} Dependency Graph",
		},
		{
			name:      "single substitution",
			text:      "*{{project}} Dependency Status Report*",
			variables: map[string]string{"project": "CLP"},
			want:      "*CLP Dependency Status Report*",
		},
		{
			name:      "repeated and multiple",
			text:      "{{project}} on {{date}}: see {{project}} board",
			variables: map[string]string{"project": "CLP", "date": "2025-06-02"},
			want:      "CLP on 2025-06-02: see CLP board",
		},
		{
			name:      "unknown variable preserved",
			text:      "{{project}} run {{run_id}}",
			variables: map[string]string{"project": "CLP"},
			want:      "CLP run {{run_id}}",
		},
		{
			name:      "multiline explanation",
			text:      "Explanation: issue-to-issue dependencies across the {{project}} project.\nOnly non-Done issues are included.",
			variables: map[string]string{"project": "CLP"},
			want:      "Explanation: issue-to-issue dependencies across the CLP project.\nOnly non-Done issues are included.",
		},
		{
			name:      "value with braces is not re-expanded",
			text:      "{{a}}",
			variables: map[string]string{"a": "{{b}}", "b": "x"},
			want:      "{{b}}",
		},
		{
			name:      "invalid names ignored",
			text:      "{{1st}} {{team-name}} {{{project}}}",
			variables: map[string]string{"1st": "x", "team-name": "y", "project": "CLP"},
			want:      "{{1st}} {{team-name}} {CLP}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.text, tt.variables); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestBuiltins(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC)
	want := map[string]string{"project": "CLP", "run_id": "abc", "date": "2025-06-02"}
	if diff := cmp.Diff(want, Builtins("CLP", "abc", now)); diff != "" {
		t.Errorf("Builtins() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeVariables(t *testing.T) {
	tests := []struct {
		name       string
		builtins   map[string]string
		configured map[string]string
		want       map[string]string
	}{
		{name: "both nil", want: nil},
		{name: "both empty", builtins: map[string]string{}, configured: map[string]string{}, want: nil},
		{
			name:     "only builtins",
			builtins: map[string]string{"project": "CLP"},
			want:     map[string]string{"project": "CLP"},
		},
		{
			name:       "configured overrides builtins",
			builtins:   map[string]string{"project": "CLP", "date": "2025-06-02"},
			configured: map[string]string{"project": "Clinical Platform", "team": "Design"},
			want:       map[string]string{"project": "Clinical Platform", "date": "2025-06-02", "team": "Design"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, MergeVariables(tt.builtins, tt.configured)); diff != "" {
				t.Errorf("MergeVariables() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
