package eventbus

import (
	"context"
	"time"
)

// EventType represents the type of an event
type EventType string

const (
	// Pipeline events, published by the stage runner
	EventPipelineStarted   EventType = "pipeline_started"
	EventPipelineCompleted EventType = "pipeline_completed"
	EventStageStarted      EventType = "stage_started"
	EventStageCompleted    EventType = "stage_completed"
	EventStageFailed       EventType = "stage_failed"

	// Script events, published by the script assembler
	EventBlocksCollected EventType = "blocks_collected"
	EventScriptRendered  EventType = "script_rendered"
	EventScriptFailed    EventType = "script_failed"
)

// EventHandler is a function that handles events
type EventHandler func(context.Context, Event) error

// Event represents something that happened while computing or rendering
// a model.
type Event interface {
	Type() EventType
	Payload() any
	Metadata() map[string]any
	// Timestamp in nanoseconds since the epoch
	Timestamp() int64
	// Source names the model or component that published the event
	Source() string
}

// EventBus is the central event dispatch system
type EventBus interface {
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for specific event types and returns
	// a subscription ID that can be used to unsubscribe.
	Subscribe(eventTypes []EventType, handler EventHandler) (string, error)

	// SubscribeAll registers a handler for all event types.
	SubscribeAll(handler EventHandler) (string, error)

	Unsubscribe(subscriptionID string) error

	// Close stops the workers once queued events are dispatched.
	Close() error
}

// BaseEvent is a simple implementation of the Event interface
type BaseEvent struct {
	eventType  EventType
	payload    any
	metadata   map[string]any
	timestamp  int64
	sourceInfo string
}

// NewEvent creates a new BaseEvent
func NewEvent(eventType EventType, payload any, source string, metadata map[string]any) *BaseEvent {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &BaseEvent{
		eventType:  eventType,
		payload:    payload,
		metadata:   metadata,
		timestamp:  time.Now().UnixNano(),
		sourceInfo: source,
	}
}

func (e *BaseEvent) Type() EventType          { return e.eventType }
func (e *BaseEvent) Payload() any             { return e.payload }
func (e *BaseEvent) Metadata() map[string]any { return e.metadata }
func (e *BaseEvent) Timestamp() int64         { return e.timestamp }
func (e *BaseEvent) Source() string           { return e.sourceInfo }

// WithMetadata adds or updates metadata and returns the same event.
func (e *BaseEvent) WithMetadata(key string, value any) *BaseEvent {
	e.metadata[key] = value
	return e
}

// StagePayload is the payload of stage events.
type StagePayload struct {
	Key      int
	Callable string
	Duration time.Duration
	Err      error
}

// ScriptPayload is the payload of script events.
type ScriptPayload struct {
	Instances int
	Blocks    int
	Bytes     int
	Err       error
}

// Publish sends event to bus, or to the bus carried by ctx when bus is
// nil. Without either it does nothing. Publishing errors are returned for
// the caller to log; they never fail the operation that produced the
// event.
func Publish(ctx context.Context, bus EventBus, event Event) error {
	if bus == nil {
		if bus = FromContext(ctx); bus == nil {
			return nil
		}
	}
	return bus.Publish(ctx, event)
}

type busKey struct{}

// WithBus returns a context carrying bus. Components without a bus of
// their own publish to it.
func WithBus(ctx context.Context, bus EventBus) context.Context {
	return context.WithValue(ctx, busKey{}, bus)
}

// FromContext returns the bus carried by ctx, or nil.
func FromContext(ctx context.Context) EventBus {
	bus, _ := ctx.Value(busKey{}).(EventBus)
	return bus
}
