package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// footerSeparator marks the start of the raw-text explanation appended
// after the CSV rows.
const footerSeparator = "---"

// WriteCSV writes t to path, replacing any existing file, followed by the
// explanation footer when one is given. The footer is raw text and is not
// CSV-quoted.
func WriteCSV(path string, t *Table, footer string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := Encode(f, t, footer); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes the CSV form of t and the optional footer to w.
func Encode(w io.Writer, t *Table, footer string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}

	if footer == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "\n%s\n%s\n", footerSeparator, strings.TrimRight(footer, "\n"))
	return err
}

// ReadCSV loads a CSV file with a header row. Reading stops at an
// explanation footer, so files written by WriteCSV can be read back.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// Decode parses CSV from r; see ReadCSV.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty csv: missing header row")
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := NewTable(header...)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == footerSeparator {
			break
		}
		t.Append(rec...)
	}
	return t, nil
}

// NormalizeKey upper-cases and trims an issue key for set membership.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// KeySet is a set of normalized issue keys.
type KeySet map[string]struct{}

// Has reports whether key (normalized) is in the set.
func (s KeySet) Has(key string) bool {
	_, ok := s[NormalizeKey(key)]
	return ok
}

// LoadKeySet reads the column named column of a CSV file into a KeySet.
// Blank values are skipped. On any error (a missing file included) the
// returned set is empty but usable, and the error says why.
func LoadKeySet(path, column string) (KeySet, error) {
	set := KeySet{}
	t, err := ReadCSV(path)
	if err != nil {
		return set, err
	}
	keys, err := t.Values(column)
	if err != nil {
		return set, fmt.Errorf("%s: %w", path, err)
	}
	for _, k := range keys {
		if k = NormalizeKey(k); k != "" {
			set[k] = struct{}{}
		}
	}
	return set, nil
}

// UniqueValues returns the non-empty values of column in first-seen order.
func UniqueValues(t *Table, column string) ([]string, error) {
	vals, err := t.Values(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(vals))
	var out []string
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// AddColumn appends a column whose value is computed from each row's
// value in the key column.
func AddColumn(t *Table, key, name string, value func(string) string) error {
	idx := t.Column(key)
	if idx < 0 {
		return fmt.Errorf("column %q not found", key)
	}
	t.Header = append(t.Header, name)
	for i, row := range t.Rows {
		t.Rows[i] = append(row, value(row[idx]))
	}
	return nil
}

// LeftJoin returns every row of left extended with the named columns of
// the first right row sharing the same key. Unmatched rows get empty
// values. Keys compare exactly; callers normalize them first if needed.
func LeftJoin(left *Table, right *Table, key string, columns ...string) (*Table, error) {
	li := left.Column(key)
	if li < 0 {
		return nil, fmt.Errorf("left table: column %q not found", key)
	}
	ri := right.Column(key)
	if ri < 0 {
		return nil, fmt.Errorf("right table: column %q not found", key)
	}
	cols := make([]int, len(columns))
	for i, c := range columns {
		cols[i] = right.Column(c)
		if cols[i] < 0 {
			return nil, fmt.Errorf("right table: column %q not found", c)
		}
	}

	index := make(map[string][]string, len(right.Rows))
	for _, row := range right.Rows {
		if _, dup := index[row[ri]]; !dup {
			index[row[ri]] = row
		}
	}

	out := NewTable(append(append([]string(nil), left.Header...), columns...)...)
	for _, row := range left.Rows {
		vals := append([]string(nil), row...)
		match := index[row[li]]
		for _, c := range cols {
			if match != nil {
				vals = append(vals, match[c])
			} else {
				vals = append(vals, "")
			}
		}
		out.Append(vals...)
	}
	return out, nil
}
