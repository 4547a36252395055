package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTable_AppendPadsAndTruncates(t *testing.T) {
	tbl := NewTable("a", "b", "c")
	tbl.Append("1")
	tbl.Append("1", "2", "3", "4")

	want := [][]string{{"1", "", ""}, {"1", "2", "3"}}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Errorf("Rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_Select(t *testing.T) {
	tbl := NewTable("key", "summary", "epic")
	tbl.Append("CLP-1", "Login", "CLP-75")

	got, err := tbl.Select("key", "epic")
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if diff := cmp.Diff([][]string{{"CLP-1", "CLP-75"}}, got.Rows); diff != "" {
		t.Errorf("Select() rows mismatch (-want +got):\n%s", diff)
	}
	if _, err := tbl.Select("assignee"); err == nil {
		t.Error("Select() of a missing column: expected error")
	}
}

func TestTable_Text(t *testing.T) {
	tbl := NewTable("Team", "Tickets_Ready")
	tbl.Append("Design", "4")
	tbl.Append("Data Science", "12")

	want := "Team          Tickets_Ready\n" +
		"Design        4\n" +
		"Data Science  12"
	if got := tbl.Text(); got != want {
		t.Errorf("Text() =\n%s\nwant\n%s", got, want)
	}

	if got := NewTable("Team").Text(); got != "Team" {
		t.Errorf("empty Text() = %q, want header only", got)
	}
}

func TestEncode_Footer(t *testing.T) {
	tbl := NewTable("Issue", "Status")
	tbl.Append("CLP-1", "In Progress, blocked")

	var buf bytes.Buffer
	if err := Encode(&buf, tbl, "Explanation: line one.\nLine \"two\".\n"); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	want := "Issue,Status\n" +
		"CLP-1,\"In Progress, blocked\"\n" +
		"\n---\n" +
		"Explanation: line one.\nLine \"two\".\n"
	if got := buf.String(); got != want {
		t.Errorf("Encode() =\n%q\nwant\n%q", got, want)
	}
}

func TestEncode_NoRowsStillWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, NewTable("Issue", "Status"), ""); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if got := buf.String(); got != "Issue,Status\n" {
		t.Errorf("Encode() = %q", got)
	}
}

func TestWriteCSV_OverwritesAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")

	first := NewTable("key", "epic")
	first.Append("CLP-1", "CLP-75")
	first.Append("CLP-2", "CLP-75")
	if err := WriteCSV(path, first, "first run"); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	second := NewTable("key", "epic")
	second.Append("CLP-9", "None")
	if err := WriteCSV(path, second, "Explanation, with \"quotes\" and, commas"); err != nil {
		t.Fatalf("WriteCSV() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "CLP-1") || strings.Contains(string(data), "first run") {
		t.Errorf("second write did not replace the file:\n%s", data)
	}

	got, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error: %v", err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Table
		wantErr bool
	}{
		{
			name:  "bom and ragged rows",
			input: "\ufeffkey,times_moved\nCLP-1,2\nCLP-2\n",
			want:  &Table{Header: []string{"key", "times_moved"}, Rows: [][]string{{"CLP-1", "2"}, {"CLP-2", ""}}},
		},
		{
			name:  "header only",
			input: "key\n",
			want:  &Table{Header: []string{"key"}},
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadKeySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slips.csv")
	content := "key,times_moved,last_moved\n clp-1 ,2,2025-05-01\nCLP-2,1,2025-05-02\n,0,\nCLP-1,3,2025-05-03\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	set, err := LoadKeySet(path, "key")
	if err != nil {
		t.Fatalf("LoadKeySet() error: %v", err)
	}
	if len(set) != 2 {
		t.Errorf("len(set) = %d, want 2", len(set))
	}
	for _, k := range []string{"CLP-1", "clp-2", " CLP-2 "} {
		if !set.Has(k) {
			t.Errorf("Has(%q) = false, want true", k)
		}
	}
	if set.Has("CLP-3") {
		t.Error("Has(CLP-3) = true, want false")
	}
}

func TestLoadKeySet_Errors(t *testing.T) {
	dir := t.TempDir()

	set, err := LoadKeySet(filepath.Join(dir, "missing.csv"), "key")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadKeySet(missing) error = %v, want os.ErrNotExist", err)
	}
	if set == nil || len(set) != 0 {
		t.Errorf("LoadKeySet(missing) set = %v, want empty non-nil", set)
	}

	path := filepath.Join(dir, "nokey.csv")
	if err := os.WriteFile(path, []byte("issue\nCLP-1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeySet(path, "key"); err == nil || !strings.Contains(err.Error(), `column "key" not found`) {
		t.Errorf("LoadKeySet(no key column) error = %v", err)
	}
}

func TestUniqueValues(t *testing.T) {
	tbl := NewTable("key")
	for _, k := range []string{"CLP-2", "CLP-1", "", "CLP-2", " CLP-3 "} {
		tbl.Append(k)
	}
	got, err := UniqueValues(tbl, "key")
	if err != nil {
		t.Fatalf("UniqueValues() error: %v", err)
	}
	if diff := cmp.Diff([]string{"CLP-2", "CLP-1", "CLP-3"}, got); diff != "" {
		t.Errorf("UniqueValues() mismatch (-want +got):\n%s", diff)
	}
}

func TestAddColumn(t *testing.T) {
	tbl := NewTable("key")
	tbl.Append("CLP-1")
	tbl.Append("CLP-2")

	epics := map[string]string{"CLP-1": "CLP-75"}
	err := AddColumn(tbl, "key", "epic", func(k string) string {
		if e, ok := epics[k]; ok {
			return e
		}
		return "None"
	})
	if err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}

	want := &Table{Header: []string{"key", "epic"}, Rows: [][]string{{"CLP-1", "CLP-75"}, {"CLP-2", "None"}}}
	if diff := cmp.Diff(want, tbl); diff != "" {
		t.Errorf("AddColumn() mismatch (-want +got):\n%s", diff)
	}
}

func TestLeftJoin(t *testing.T) {
	left := NewTable("key", "epic")
	left.Append("CLP-1", "CLP-75")
	left.Append("CLP-2", "CLP-112")

	right := NewTable("key", "times_moved", "last_moved")
	right.Append("CLP-1", "3", "2025-05-03")
	right.Append("CLP-1", "9", "2025-06-01")

	got, err := LeftJoin(left, right, "key", "times_moved", "last_moved")
	if err != nil {
		t.Fatalf("LeftJoin() error: %v", err)
	}
	want := &Table{
		Header: []string{"key", "epic", "times_moved", "last_moved"},
		Rows: [][]string{
			{"CLP-1", "CLP-75", "3", "2025-05-03"},
			{"CLP-2", "CLP-112", "", ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LeftJoin() mismatch (-want +got):\n%s", diff)
	}

	if _, err := LeftJoin(left, right, "key", "assignee"); err == nil {
		t.Error("LeftJoin() with missing column: expected error")
	}
}
