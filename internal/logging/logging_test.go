package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v want %v", in, got, want)
		}
	}
}

func TestStartSpanEnrichesLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "info"))
	ctx = WithViewerSession(ctx, "viewer-1")

	ctx, span := StartSpan(ctx, "admin.add_video")
	FromContext(ctx).Info("inside span")
	span.End()

	if TraceIDFromContext(ctx) == "" || SpanIDFromContext(ctx) == "" {
		t.Fatal("expected trace and span ids on context")
	}
	if ViewerSessionFromContext(ctx) != "viewer-1" {
		t.Fatalf("expected viewer session to survive span, got %q", ViewerSessionFromContext(ctx))
	}

	var entry map[string]any
	line := bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0]
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["span_name"] != "admin.add_video" || entry["viewer_session"] != "viewer-1" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}

func TestSpanEndReportsFailure(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(&buf, "info"))

	_, span := StartSpan(ctx, "summary.generate")
	span.Fail(errors.New("captions disabled"))
	span.End()

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["level"] != "WARN" || entry["msg"] != "generate failed" {
		t.Fatalf("unexpected failure entry: %v", entry)
	}
	if entry["component"] != "summary" || entry["error"] != "captions disabled" {
		t.Fatalf("unexpected failure attributes: %v", entry)
	}
}
