package telemetry

import (
	"context"
	"log"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after GracefulStop before tearing
// down providers, so in-flight async emits can finish. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EventEmitter is the synchronous emit surface (satisfied by the Kafka producer).
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// AsyncEmitter wraps an EventEmitter with fire-and-forget semantics for use
// inside request handlers.
type AsyncEmitter struct {
	emitter EventEmitter
}

// NewAsyncEmitter returns an AsyncEmitter. A nil emitter yields an emitter
// that drops every event, so callers never need a nil check.
func NewAsyncEmitter(emitter EventEmitter) *AsyncEmitter {
	return &AsyncEmitter{emitter: emitter}
}

// Emit sends the event in a goroutine with its own timeout so request
// cancellation does not abort an in-flight emit. Errors are logged.
func (a *AsyncEmitter) Emit(_ context.Context, event Event) {
	if a == nil || a.emitter == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := a.emitter.Emit(emitCtx, &event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
