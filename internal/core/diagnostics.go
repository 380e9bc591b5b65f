package core

// diagnostics.go defines the event stream that cleaners and the auditor report
// data-quality findings through.
//
// Nothing in this package logs directly. Components receive a Diagnostics
// value and emit Events into it; callers decide where events go (the process
// logger, a Collector for the run summary, a metrics recorder, or all three
// via Tee).

import (
	"context"
	"log/slog"
	"sync"
)

// Severity is the level of a diagnostic event.
type Severity string

const (
	SeverityDebug   Severity = "debug"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Level maps the severity onto a slog level.
func (s Severity) Level() slog.Level {
	switch s {
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// EventKind classifies what an event reports.
type EventKind string

const (
	KindRowsDropped       EventKind = "rows_dropped"
	KindCoercionFailed    EventKind = "coercion_failed"
	KindInvalidJSON       EventKind = "invalid_json"
	KindDanglingReference EventKind = "dangling_reference"
)

// Event is a single diagnostic. Count is zero when not applicable.
type Event struct {
	Severity Severity  `json:"severity"`
	Kind     EventKind `json:"kind,omitempty"`
	Message  string    `json:"message"`
	Table    string    `json:"table,omitempty"`
	Field    string    `json:"field,omitempty"`
	Count    int       `json:"count,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// Diagnostics receives events.
type Diagnostics interface {
	Emit(Event)
}

// DiagnosticsFunc adapts a function to the Diagnostics interface.
type DiagnosticsFunc func(Event)

// Emit calls f(e).
func (f DiagnosticsFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Diagnostics = DiagnosticsFunc(func(Event) {})

// Collector keeps every event in memory, in emission order.
// The zero value is ready to use and safe for concurrent readers.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of all recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Warnings returns the recorded warning-level events.
func (c *Collector) Warnings() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Severity == SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

// ByKind returns the recorded events of one kind.
func (c *Collector) ByKind(kind EventKind) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of recorded events.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// SlogSink writes events to a structured logger.
// A nil Logger falls back to slog.Default().
type SlogSink struct {
	Logger *slog.Logger
}

// Emit logs the event at its severity level.
func (s SlogSink) Emit(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := make([]any, 0, 10)
	if e.Kind != "" {
		args = append(args, "kind", string(e.Kind))
	}
	if e.Table != "" {
		args = append(args, "table", e.Table)
	}
	if e.Field != "" {
		args = append(args, "field", e.Field)
	}
	if e.Count != 0 {
		args = append(args, "count", e.Count)
	}
	if e.Detail != "" {
		args = append(args, "detail", e.Detail)
	}

	logger.Log(context.Background(), e.Severity.Level(), e.Message, args...)
}

// Tee fans every event out to each non-nil sink in order.
func Tee(sinks ...Diagnostics) Diagnostics {
	live := make([]Diagnostics, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return DiagnosticsFunc(func(e Event) {
		for _, s := range live {
			s.Emit(e)
		}
	})
}

// emit sends e to d, tolerating a nil sink.
func emit(d Diagnostics, e Event) {
	if d == nil {
		return
	}
	d.Emit(e)
}

// maxDetailLen bounds how much of an offending value is copied into an event.
const maxDetailLen = 120

func truncateDetail(s string) string {
	r := []rune(s)
	if len(r) <= maxDetailLen {
		return s
	}
	return string(r[:maxDetailLen]) + "..."
}
