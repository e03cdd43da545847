package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventAttach  EventType = "attach"
	EventDetach  EventType = "detach"
	EventEject   EventType = "eject"
	EventIndex   EventType = "index"
	EventFile    EventType = "file"
	EventExtract EventType = "extract"
	EventJob     EventType = "job"
	EventStop    EventType = "stop"
	EventRestore EventType = "restore"
	EventError   EventType = "error"
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

// Event represents a single event in the dock's lifecycle
type Event struct {
	Timestamp time.Time         `json:"ts"`
	Level     EventLevel        `json:"level"`
	Event     EventType         `json:"event"`
	StorageID string            `json:"storage_id,omitempty"`
	DeviceID  string            `json:"device_id,omitempty"`
	Path      string            `json:"path,omitempty"`
	TrackRef  string            `json:"track_ref,omitempty"`
	Job       string            `json:"job,omitempty"`
	Action    string            `json:"action,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Files     int               `json:"files,omitempty"`
	Duration  int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error     string            `json:"error,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
	ring     *Ring
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename with timestamp
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	// Open file for writing
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
		ring:     NewRing(ringSize),
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// The ring keeps everything: the level floor only gates disk writes,
	// and a post-mortem wants the debug trail too.
	l.ring.Add(*event)

	// Filter by minimum level
	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil // Skip events below minimum level
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// Recent returns the buffered recent events, oldest first. The buffer sees
// every event regardless of the configured level floor.
func (l *EventLogger) Recent() []Event {
	if l == nil || l.ring == nil {
		return nil
	}
	return l.ring.Snapshot()
}

// LogAttach logs a storage attach event
func (l *EventLogger) LogAttach(storageID, deviceID, root string) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventAttach,
		StorageID: storageID,
		DeviceID:  deviceID,
		Path:      root,
	})
}

// LogDetach logs a storage removal event; an empty storage id means every
// known storage is gone
func (l *EventLogger) LogDetach(storageID, deviceID string) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventDetach,
		StorageID: storageID,
		DeviceID:  deviceID,
	})
}

// LogEject logs a user-initiated eject
func (l *EventLogger) LogEject(storageID string) error {
	return l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventEject,
		StorageID: storageID,
	})
}

// LogIndexPass logs the completion of one indexing pass over a storage
func (l *EventLogger) LogIndexPass(storageID string, files, audio int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:     level,
		Event:     EventIndex,
		StorageID: storageID,
		Files:     files,
		Duration:  duration.Milliseconds(),
		Error:     errMsg,
		Extra: map[string]string{
			"audio": fmt.Sprintf("%d", audio),
		},
	})
}

// LogFile logs a discovered audio file
func (l *EventLogger) LogFile(storageID, path string, sizeBytes int64) error {
	return l.Log(&Event{
		Level:     LevelDebug,
		Event:     EventFile,
		StorageID: storageID,
		Path:      path,
		Extra: map[string]string{
			"size_bytes": fmt.Sprintf("%d", sizeBytes),
		},
	})
}

// LogExtract logs a metadata extraction event
func (l *EventLogger) LogExtract(trackRef, path string, fromTags bool, err error) error {
	level := LevelDebug
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventExtract,
		TrackRef: trackRef,
		Path:     path,
		Error:    errMsg,
		Extra: map[string]string{
			"from_tags": fmt.Sprintf("%t", fromTags),
		},
	})
}

// LogJob logs a job lifecycle event (started, finished, cancelled)
func (l *EventLogger) LogJob(job, action string, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventJob,
		Job:    job,
		Action: action,
		Error:  errMsg,
	})
}

// LogStop logs a stop-arbitration decision
func (l *EventLogger) LogStop(reason, lastStart, outcome string) error {
	level := LevelInfo
	if outcome == "rejected" {
		level = LevelWarning
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventStop,
		Reason: reason,
		Action: outcome,
		Extra: map[string]string{
			"last_start": lastStart,
		},
	})
}

// LogRestore logs a restored playback position
func (l *EventLogger) LogRestore(trackRef string, queued, skipped int) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventRestore,
		TrackRef: trackRef,
		Extra: map[string]string{
			"queued":  fmt.Sprintf("%d", queued),
			"skipped": fmt.Sprintf("%d", skipped),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, path string, err error) error {
	return l.Log(&Event{
		Level: LevelError,
		Event: event,
		Path:  path,
		Error: err.Error(),
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

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
