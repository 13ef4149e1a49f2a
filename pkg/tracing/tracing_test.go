package tracing

import (
	"context"
	"os"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func TestInitTracingWithoutEndpoint(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test-version")
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	defer shutdown(ctx)

	ctx, span := StartSpan(ctx, "crop_dxf",
		trace.WithAttributes(CropAttributes(10, 2, 1, 1, 0, 4)...),
	)
	defer span.End()

	if span.IsRecording() {
		t.Error("no-op tracer produced a recording span")
	}
	if trace.SpanFromContext(ctx).IsRecording() {
		t.Error("context carries a recording span")
	}

	// Helpers must be safe on non-recording spans.
	RecordError(ctx, &testError{msg: "boom"}, trace.WithTimestamp(time.Now()))
	SetStatus(ctx, codes.Error, "boom")
	AddEvent(ctx, "entity_removed", trace.WithAttributes(attribute.String("type", "LINE")))
	SetAttributes(ctx, attribute.Int(AttrEntitiesKept, 3))
}

func TestInitTracingWithEndpoint(t *testing.T) {
	endpoint := os.Getenv("TEST_OTLP_ENDPOINT")
	if endpoint == "" {
		t.Skip("set TEST_OTLP_ENDPOINT to run")
	}
	t.Setenv("OTLP_ENDPOINT", endpoint)

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test-version")
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	defer shutdown(ctx)

	_, span := StartSpan(ctx, "check")
	span.End()
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name  string
		attrs []attribute.KeyValue
		want  int
	}{
		{"tool", MCPToolAttributes("crop_dxf", StatusSuccess, 12, 340), 4},
		{"crop", CropAttributes(1024, 80, 10, 7, 3, 5), 6},
		{"advisor", AdvisorAttributes("local", "Polygon", true), 3},
		{"nil error", ErrorAttributes(nil), 0},
		{"error", ErrorAttributes(&testError{msg: "test error"}), 2},
	}
	for _, tt := range tests {
		if len(tt.attrs) != tt.want {
			t.Errorf("%s: got %d attributes, want %d", tt.name, len(tt.attrs), tt.want)
		}
	}
}

func TestSampleRatio(t *testing.T) {
	tests := map[string]float64{
		"":     1,
		"0.25": 0.25,
		"0":    0,
		"2":    1,
		"-1":   1,
		"abc":  1,
	}
	for value, want := range tests {
		t.Setenv("OTLP_SAMPLE_RATIO", value)
		if got := sampleRatio(); got != want {
			t.Errorf("sampleRatio() with %q = %v, want %v", value, got, want)
		}
	}
}

func TestEnvironmentDetection(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	if env := getEnvironment(); env != "development" {
		t.Errorf("getEnvironment() = %s, expected 'development'", env)
	}

	t.Setenv("ENVIRONMENT", "production")
	if env := getEnvironment(); env != "production" {
		t.Errorf("getEnvironment() = %s, expected 'production'", env)
	}
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
