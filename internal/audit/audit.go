// Package audit provides structured event logging for project lifecycle events.
// Events are stored as JSON Lines (JSONL) files, one per project.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EventType classifies a lifecycle event.
type EventType string

const (
	EventScan    EventType = "scan"
	EventStart   EventType = "start"
	EventStop    EventType = "stop"
	EventCrash   EventType = "crash"
	EventImport  EventType = "import"
	EventEmbed   EventType = "embed"
	EventExtract EventType = "extract"
	EventError   EventType = "error"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Project   string    `json:"project"`
	Component string    `json:"component,omitempty"`
	Details   string    `json:"details,omitempty"`
}

// Logger writes and reads audit events for projects.
// Events are stored in {eventsDir}/{name}.events.jsonl.
type Logger struct {
	eventsDir string
}

// NewLogger creates a new audit logger rooted at eventsDir.
func NewLogger(eventsDir string) *Logger {
	return &Logger{eventsDir: eventsDir}
}

// eventPath returns the path to the JSONL event log for a project.
func (l *Logger) eventPath(project string) string {
	return filepath.Join(l.eventsDir, project+".events.jsonl")
}

// Log appends an event to the project's audit log.
func (l *Logger) Log(event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	path := l.eventPath(event.Project)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// LogEvent is a convenience method that creates and logs an event.
func (l *Logger) LogEvent(eventType EventType, project, details string) error {
	return l.Log(Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Project:   project,
		Details:   details,
	})
}

// Events reads all events for a project in chronological order.
func (l *Logger) Events(project string) ([]Event, error) {
	path := l.eventPath(project)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading audit log: %w", err)
	}

	return events, nil
}

// Remove deletes the audit log for a project.
func (l *Logger) Remove(project string) error {
	path := l.eventPath(project)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
