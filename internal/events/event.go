// Package events announces finished report runs so downstream consumers
// (dashboards, archivers, chat bridges) can react without polling.
package events

import (
	"context"
	"time"
)

// EventType identifies the outcome of a run.
type EventType string

const (
	// EventCompleted is emitted after a report run finished successfully.
	EventCompleted EventType = "report.completed"
	// EventFailed is emitted when a report run aborted.
	EventFailed EventType = "report.failed"
)

// ReportEvent describes one report run.
type ReportEvent struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Type      EventType `json:"type"`

	// Report is the command name, e.g. "dependencies".
	Report  string `json:"report"`
	Project string `json:"project,omitempty"`

	// Rows is the number of data rows written to the report CSV.
	Rows        int      `json:"rows"`
	Artifacts   []string `json:"artifacts,omitempty"`
	ArchiveKeys []string `json:"archive_keys,omitempty"`
	Published   bool     `json:"published"`

	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Publisher delivers report events.
type Publisher interface {
	Publish(ctx context.Context, event ReportEvent) error
	Close() error
}

// ValidEventTypes returns all valid event type values.
func ValidEventTypes() []EventType {
	return []EventType{EventCompleted, EventFailed}
}

// IsValidEventType checks if the given string is a valid event type.
func IsValidEventType(s string) bool {
	for _, t := range ValidEventTypes() {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Multi fans an event out to several publishers. Every publisher is
// tried; the first error is returned.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event ReportEvent) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NoopPublisher is a Publisher that does nothing (used when no sink is configured).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, ReportEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
