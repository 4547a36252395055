// Package logging builds the zap logger used by every sprintwatch command.
//
// JSON output follows the Cloud Logging structured format (severity,
// message, timestamp and a labels object) so runs scheduled on GCP are
// ingested with the right severity. Console output is meant for local runs.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/andywolf/sprintwatch/internal/security"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Severity levels as understood by Cloud Logging
type Severity string

const (
	SeverityDefault  Severity = "DEFAULT"
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// LabelsKey is the field Cloud Logging promotes to entry labels.
const LabelsKey = "logging.googleapis.com/labels"

// SeverityFor maps a zap level to its Cloud Logging severity.
func SeverityFor(l zapcore.Level) Severity {
	switch l {
	case zapcore.DebugLevel:
		return SeverityDebug
	case zapcore.InfoLevel:
		return SeverityInfo
	case zapcore.WarnLevel:
		return SeverityWarning
	case zapcore.ErrorLevel:
		return SeverityError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return SeverityCritical
	default:
		return SeverityDefault
	}
}

func encodeSeverity(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(string(SeverityFor(l)))
}

type options struct {
	writer   io.Writer
	level    string
	format   string
	labels   map[string]string
	scrubber *security.Scrubber
}

// Option configures New
type Option func(*options)

// WithWriter sets the log destination (stderr by default)
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// WithLevel sets the minimum level: debug, info, warn or error
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithFormat selects "json" or "console" encoding
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithLabels adds labels to every entry
func WithLabels(labels map[string]string) Option {
	return func(o *options) {
		for k, v := range labels {
			o.labels[k] = v
		}
	}
}

// WithRunID labels every entry with the run identifier
func WithRunID(runID string) Option {
	return func(o *options) { o.labels["run_id"] = runID }
}

// WithScrubber redacts credentials from messages and string fields
func WithScrubber(s *security.Scrubber) Option {
	return func(o *options) { o.scrubber = s }
}

// New creates a structured logger
func New(opts ...Option) (*zap.Logger, error) {
	o := &options{
		writer: os.Stderr,
		level:  "info",
		format: "json",
		labels: map[string]string{"component": "sprintwatch"},
	}
	for _, opt := range opts {
		opt(o)
	}

	level, err := zapcore.ParseLevel(o.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.level, err)
	}

	var enc zapcore.Encoder
	switch o.format {
	case "json":
		enc = zapcore.NewJSONEncoder(zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "severity",
			NameKey:        "logger",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeSeverity,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeName:     zapcore.FullNameEncoder,
		})
	case "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.CallerKey = ""
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (must be json or console)", o.format)
	}

	var core zapcore.Core = zapcore.NewCore(enc, zapcore.AddSync(o.writer), level)
	if o.scrubber != nil {
		core = &scrubCore{Core: core, scrubber: o.scrubber}
	}

	labels := make(map[string]string, len(o.labels))
	for k, v := range o.labels {
		labels[k] = v
	}

	return zap.New(core).With(zap.Object(LabelsKey, labelMap(labels))), nil
}

type labelMap map[string]string

func (m labelMap) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range m {
		enc.AddString(k, v)
	}
	return nil
}

// scrubCore redacts credentials before entries reach the encoder.
type scrubCore struct {
	zapcore.Core
	scrubber *security.Scrubber
}

func (c *scrubCore) With(fields []zapcore.Field) zapcore.Core {
	return &scrubCore{Core: c.Core.With(c.scrubFields(fields)), scrubber: c.scrubber}
}

func (c *scrubCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *scrubCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.scrubber.Scrub(ent.Message)
	return c.Core.Write(ent, c.scrubFields(fields))
}

func (c *scrubCore) scrubFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = c.scrubber.Scrub(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok {
				f = zap.String(f.Key, c.scrubber.Scrub(err.Error()))
			}
		}
		out[i] = f
	}
	return out
}
