// Package report holds the tabular output shared by every report: CSV
// export with an explanation footer, plain-text rendering for chat, and
// loading of CSV inputs such as the sprint watchdog slip export.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// Table is an ordered set of rows under a fixed header.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable creates an empty table with the given columns.
func NewTable(header ...string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// Append adds a row. Short rows are padded, long rows truncated, so every
// row matches the header width.
func (t *Table) Append(values ...string) {
	row := make([]string, len(t.Header))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the index of name in the header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Values returns the named column, or an error if it does not exist.
func (t *Table) Values(name string) ([]string, error) {
	idx := t.Column(name)
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found (have %s)", name, strings.Join(t.Header, ", "))
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Select returns a new table with only the named columns, in that order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = t.Column(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("column %q not found", c)
		}
	}
	out := NewTable(columns...)
	for _, row := range t.Rows {
		vals := make([]string, len(idx))
		for i, j := range idx {
			vals[i] = row[j]
		}
		out.Append(vals...)
	}
	return out, nil
}

// Text renders the table as aligned plain text, the form used inside chat
// code blocks. An empty table renders as the header only.
func (t *Table) Text() string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(t.Header, "\t"))
	for _, row := range t.Rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
