package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventConsolidate EventType = "consolidate"
	EventDrop        EventType = "drop"
	EventCreate      EventType = "create"
	EventInsert      EventType = "insert"
	EventCoerce      EventType = "coerce"
	EventTable       EventType = "table"
	EventVerify      EventType = "verify"
	EventSchema      EventType = "schema"
	EventError       EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp    time.Time         `json:"ts"`
	RunID        string            `json:"run_id"`
	Level        EventLevel        `json:"level"`
	Event        EventType         `json:"event"`
	Table        string            `json:"table,omitempty"`
	Path         string            `json:"path,omitempty"`
	Line         int               `json:"line,omitempty"`
	RowsRead     int               `json:"rows_read,omitempty"`
	RowsWritten  int               `json:"rows_written,omitempty"`
	Failures     int               `json:"failures,omitempty"`
	BytesWritten int64             `json:"bytes_written,omitempty"`
	Duration     int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error        string            `json:"error,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	runID    string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(outputDir, fmt.Sprintf("events-%s.jsonl", timestamp))

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		runID:    uuid.NewString(),
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.RunID = l.runID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogConsolidate logs the outcome of writing the consolidated file
func (l *EventLogger) LogConsolidate(dest string, files, read, skipped, written int, bytesWritten int64, duration time.Duration) error {
	return l.Log(&Event{
		Level:        LevelInfo,
		Event:        EventConsolidate,
		Path:         dest,
		RowsRead:     read,
		RowsWritten:  written,
		BytesWritten: bytesWritten,
		Duration:     duration.Milliseconds(),
		Extra: map[string]string{
			"files":        fmt.Sprintf("%d", files),
			"rows_skipped": fmt.Sprintf("%d", skipped),
		},
	})
}

// LogStatement logs a DDL statement that succeeded. kind is "drop" or "create".
func (l *EventLogger) LogStatement(table, kind string) error {
	return l.Log(&Event{
		Level: LevelDebug,
		Event: EventType(kind),
		Table: table,
	})
}

// LogFailure logs a statement or row that failed. line is 0 for DDL.
func (l *EventLogger) LogFailure(table, kind string, line int, err error) error {
	level := LevelError
	if line > 0 {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level: level,
		Event: EventType(kind),
		Table: table,
		Line:  line,
		Error: errString(err),
	})
}

// LogTable logs the totals of one table rebuild
func (l *EventLogger) LogTable(table string, read, inserted, failures int, duration time.Duration) error {
	level := LevelInfo
	if failures > 0 {
		level = LevelWarning
	}
	return l.Log(&Event{
		Level:       level,
		Event:       EventTable,
		Table:       table,
		RowsRead:    read,
		RowsWritten: inserted,
		Failures:    failures,
		Duration:    duration.Milliseconds(),
	})
}

// LogVerify logs one read-back check
func (l *EventLogger) LogVerify(check, table string, rows int, err error) error {
	level := LevelInfo
	if err != nil {
		level = LevelError
	}
	return l.Log(&Event{
		Level:    level,
		Event:    EventVerify,
		Table:    table,
		RowsRead: rows,
		Error:    errString(err),
		Extra: map[string]string{
			"check": check,
		},
	})
}

// LogSchema logs one catalog statement applied to the relational store
func (l *EventLogger) LogSchema(table, kind string, err error) error {
	level := LevelInfo
	if err != nil {
		level = LevelError
	}
	return l.Log(&Event{
		Level: level,
		Event: EventSchema,
		Table: table,
		Error: errString(err),
		Extra: map[string]string{
			"statement": kind,
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: errString(err),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the id stamped on every event of this run
func (l *EventLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
