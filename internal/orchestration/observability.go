package orchestration

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Logger is the minimal printf-style logging surface stages may use.
type Logger interface {
	Printf(format string, v ...interface{})
}

// Observer defines the structured observability surface of a run.
type Observer interface {
	Logger

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured orchestration event.
type Event struct {
	Type      EventType
	Stage     string
	Message   string
	Resource  string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of orchestration event.
type EventType string

const (
	EventStageStarted    EventType = "stage.started"
	EventStageCompleted  EventType = "stage.completed"
	EventStageFailed     EventType = "stage.failed"
	EventStageRolledBack EventType = "stage.rolled-back"

	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceFailed   EventType = "resource.failed"
	EventResourceRemoved  EventType = "resource.removed"

	EventCleanupStarted   EventType = "cleanup.started"
	EventCleanupCompleted EventType = "cleanup.completed"

	EventWarning EventType = "warning"
)

// ConsoleObserver implements Observer on top of a logr sink.
type ConsoleObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewConsoleObserver creates an observer that renders events through
// the given logger.
func NewConsoleObserver(log logr.Logger) *ConsoleObserver {
	return &ConsoleObserver{
		log:           log,
		contextFields: make(map[string]string),
	}
}

// Printf implements Logger.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	o.log.Info(fmt.Sprintf(format, v...))
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kv := []interface{}{"type", string(event.Type)}
	if event.Stage != "" {
		kv = append(kv, "stage", event.Stage)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	for k, v := range o.contextFields {
		if _, shadowed := event.Fields[k]; !shadowed {
			kv = append(kv, k, v)
		}
	}
	for k, v := range event.Fields {
		kv = append(kv, k, v)
	}

	o.log.Info(event.Message, kv...)
}

// WithFields implements Observer.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ConsoleObserver{log: o.log, contextFields: merged}
}

// Helper functions for common events

// LogStageStart logs a stage start event.
func LogStageStart(observer Observer, stage string) {
	observer.Event(Event{
		Type:    EventStageStarted,
		Stage:   stage,
		Message: "starting",
	})
}

// LogStageComplete logs a stage completion event.
func LogStageComplete(observer Observer, stage string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventStageCompleted,
		Stage:   stage,
		Message: fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogStageFailed logs a stage failure event.
func LogStageFailed(observer Observer, stage string, err error) {
	observer.Event(Event{
		Type:    EventStageFailed,
		Stage:   stage,
		Message: fmt.Sprintf("failed: %v", err),
	})
}

// LogStageRolledBack logs a stage rollback event.
func LogStageRolledBack(observer Observer, stage string) {
	observer.Event(Event{
		Type:    EventStageRolledBack,
		Stage:   stage,
		Message: "rolled back",
	})
}

// LogResourceCreating logs a resource creation start event.
func LogResourceCreating(observer Observer, stage, resource string) {
	observer.Event(Event{
		Type:     EventResourceCreating,
		Stage:    stage,
		Resource: resource,
		Message:  "creating",
	})
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, stage, resource string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Stage:    stage,
		Resource: resource,
		Message:  "created",
	})
}

// LogResourceFailed logs a failed resource creation event.
func LogResourceFailed(observer Observer, stage, resource string, err error) {
	observer.Event(Event{
		Type:     EventResourceFailed,
		Stage:    stage,
		Resource: resource,
		Message:  fmt.Sprintf("failed: %v", err),
	})
}

// LogResourceRemoved logs a resource removal event.
func LogResourceRemoved(observer Observer, stage, resource string) {
	observer.Event(Event{
		Type:     EventResourceRemoved,
		Stage:    stage,
		Resource: resource,
		Message:  "removed",
	})
}
