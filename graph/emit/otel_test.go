package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func TestOTelEmitterEmit(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		SessionID: "sess-001",
		NodeID:    "upscale",
		Msg:       "node_end",
		Meta: map[string]any{
			"duration_ms": int64(420),
			"cost_usd":    0.05,
		},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "node_end" {
		t.Errorf("span name = %q, want %q", span.Name, "node_end")
	}

	attrs := attributeMap(span.Attributes)
	if got := attrs["nodeflow.session_id"]; got != "sess-001" {
		t.Errorf("session_id = %v, want %q", got, "sess-001")
	}
	if got := attrs["nodeflow.node_id"]; got != "upscale" {
		t.Errorf("node_id = %v, want %q", got, "upscale")
	}
	if got := attrs["nodeflow.duration_ms"]; got != int64(420) {
		t.Errorf("duration_ms = %v, want 420", got)
	}
	if got := attrs["nodeflow.cost_usd"]; got != 0.05 {
		t.Errorf("cost_usd = %v, want 0.05", got)
	}
	if !span.EndTime.After(span.StartTime) {
		t.Error("span was not ended")
	}
}

func TestOTelEmitterErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{
		SessionID: "sess-002",
		NodeID:    "image-gen",
		Msg:       "node_error",
		Meta:      map[string]any{"error": "provider timeout"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Status.Code != codes.Error {
		t.Errorf("status code = %v, want Error", span.Status.Code)
	}
	if span.Status.Description != "provider timeout" {
		t.Errorf("status description = %q, want %q", span.Status.Description, "provider timeout")
	}
	if len(span.Events) == 0 {
		t.Error("expected a recorded error event on the span")
	}
}

func TestOTelEmitterFlush(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTelEmitter(otel.Tracer("test"))
	emitter.Emit(Event{SessionID: "sess-003", Msg: "session_start"})

	if err := emitter.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if len(exporter.GetSpans()) != 1 {
		t.Errorf("expected span exported after flush, got %d", len(exporter.GetSpans()))
	}
}
