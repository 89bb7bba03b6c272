// Package telemetry records operational observations produced while
// executing intents: accepted-with-warning claims, reversal outcomes,
// verification findings. Telemetry is advisory; a failed emit never
// fails the command that produced it, and callers decide whether to log
// the returned error.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/waymark-rpg/waymark/internal/platform/requestctx"
	"github.com/waymark-rpg/waymark/internal/storage"
)

// Severity describes the telemetry severity level.
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// Emitter records telemetry events, stamping request and trace
// correlation from context when the event has none.
type Emitter struct {
	store storage.TelemetryStore
	clock func() time.Time
}

// NewEmitter creates an emitter over a telemetry store. A nil store
// yields a no-op emitter.
func NewEmitter(store storage.TelemetryStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit records one event. Missing timestamp, severity, request id, and
// trace correlation are filled in before the write.
func (e *Emitter) Emit(ctx context.Context, evt storage.TelemetryEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if evt.Severity == "" {
		evt.Severity = string(SeverityInfo)
	}
	if evt.RequestID == "" {
		evt.RequestID = requestctx.RequestIDFromContext(ctx)
	}
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		if evt.TraceID == "" {
			evt.TraceID = span.TraceID().String()
		}
		if evt.SpanID == "" {
			evt.SpanID = span.SpanID().String()
		}
	}
	return e.store.AppendTelemetryEvent(ctx, evt)
}

func (e *Emitter) now() time.Time {
	if e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
