package tracing

import (
	"context"
	"testing"
)

func TestInitNoneIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, "fs2cloud-test")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitUnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Exporter: "bogus"}, "fs2cloud-test")
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestStartChunkSpanReturnsUsableSpan(t *testing.T) {
	ctx, span := StartChunkSpan(context.Background(), "test.op", "file-uuid", 3)
	defer span.End()
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
}
