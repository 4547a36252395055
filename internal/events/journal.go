package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JournalFilename is the run journal written to the output directory.
const JournalFilename = "sprintwatch-events.jsonl"

// maxJournalLine bounds a single journal entry when reading.
const maxJournalLine = 1 << 20

// Journal appends one JSON line per report event. Each Publish is written
// straight through to the file; a run produces only a handful of events.
type Journal struct {
	mu   sync.Mutex
	path string
	file *os.File
	enc  *json.Encoder
}

// NewJournal opens dir/sprintwatch-events.jsonl for appending, creating it
// if needed. The directory must exist.
func NewJournal(dir string) (*Journal, error) {
	path := filepath.Join(dir, JournalFilename)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open run journal: %w", err)
	}
	return &Journal{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) Publish(_ context.Context, event ReportEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return errors.New("run journal is closed")
	}
	if err := j.enc.Encode(event); err != nil {
		return fmt.Errorf("append to run journal: %w", err)
	}
	return nil
}

// Close closes the file. Closing twice is a no-op.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	if err != nil {
		return fmt.Errorf("close run journal: %w", err)
	}
	return nil
}

// Query selects journal entries. Zero values match everything.
type Query struct {
	Report string
	Types  []EventType
	// Last keeps only the most recent matches.
	Last int
}

func (q Query) match(e ReportEvent) bool {
	if q.Report != "" && e.Report != q.Report {
		return false
	}
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// ReadJournal returns the entries of the journal at path that match q, in
// the order they were written. A missing journal yields no entries.
func ReadJournal(path string, q Query) ([]ReportEvent, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open run journal: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []ReportEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxJournalLine)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e ReportEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("run journal line %d: %w", line, err)
		}
		if q.match(e) {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read run journal: %w", err)
	}

	if q.Last > 0 && len(out) > q.Last {
		out = out[len(out)-q.Last:]
	}
	return out, nil
}
