package telemetry

import (
	"context"
	"testing"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "test", "localhost:4317", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	_, span := Tracer().Start(context.Background(), SpanIngestFix)
	span.End()
}
