package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	traceKey        = "logging.googleapis.com/trace"
	spanIDKey       = "logging.googleapis.com/spanId"
	traceSampledKey = "logging.googleapis.com/trace_sampled"
)

// NewGoogleCloudTracingLogHandler returns a slog.Handler that links log records to the active span
//
// Without a project the bare trace id is logged, which Cloud Logging can not link but other
// log sinks can still correlate on.
//
// NOTE: Requires the use of the *Context slog methods to get the tracing info
func NewGoogleCloudTracingLogHandler(baseHandler slog.Handler, project string) slog.Handler {
	return &tracingLogHandler{base: baseHandler, project: project}
}

type tracingLogHandler struct {
	base    slog.Handler
	project string
}

func (h *tracingLogHandler) traceName(traceID trace.TraceID) string {
	if h.project == "" {
		return traceID.String()
	}
	// https://docs.cloud.google.com/logging/docs/agent/logging/configuration#special-fields
	return "projects/" + h.project + "/traces/" + traceID.String()
}

func (h *tracingLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *tracingLogHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return h.base.Handle(ctx, r)
	}

	r = r.Clone()
	r.AddAttrs(
		slog.String(traceKey, h.traceName(sc.TraceID())),
		slog.String(spanIDKey, sc.SpanID().String()),
		slog.Bool(traceSampledKey, sc.IsSampled()),
	)
	return h.base.Handle(ctx, r)
}

func (h *tracingLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tracingLogHandler{base: h.base.WithAttrs(attrs), project: h.project}
}

func (h *tracingLogHandler) WithGroup(name string) slog.Handler {
	return &tracingLogHandler{base: h.base.WithGroup(name), project: h.project}
}
