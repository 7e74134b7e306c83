package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Span times one admin or summary operation. Names take the form
// "component.operation", e.g. "admin.add_video".
type Span struct {
	operation string
	logger    *slog.Logger
	start     time.Time
	err       error
}

// StartSpan opens a span under the trace carried by ctx, starting a new trace
// when there is none. The returned context carries a logger tagged with the
// span, and with the viewer session when the work runs for a watch page.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	component, operation, ok := strings.Cut(name, ".")
	if !ok {
		component, operation = "", name
	}

	spanID := uuid.NewString()
	attrs := []any{slog.String("span_id", spanID), slog.String("span_name", name)}
	if component != "" {
		attrs = append(attrs, slog.String("component", component))
	}
	if parent := SpanIDFromContext(ctx); parent != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent))
	}
	logger = logger.With(attrs...)

	ctx = WithSpanID(WithLogger(ctx, logger), spanID)
	return ctx, &Span{operation: operation, logger: logger, start: time.Now()}
}

// Fail marks the span as failed; End then reports err. Later calls overwrite
// earlier ones.
func (s *Span) Fail(err error) {
	if s != nil && err != nil {
		s.err = err
	}
}

// End logs the span duration, at warn level when the span failed.
func (s *Span) End() {
	if s == nil {
		return
	}
	duration := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn(s.operation+" failed", duration, slog.Any("error", s.err))
		return
	}
	s.logger.Info(s.operation+" completed", duration)
}
