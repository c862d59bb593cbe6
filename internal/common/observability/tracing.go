package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// NewTracerProvider installs a global tracer provider that writes finished
// spans to log. Failed spans are logged at warn, the rest at debug.
func NewTracerProvider(serviceName string, log *zap.Logger) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(NewLogExporter(log)),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)
	return tp
}

type LogExporter struct {
	log *zap.Logger
}

func NewLogExporter(log *zap.Logger) *LogExporter {
	return &LogExporter{log: log}
}

func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.String("traceId", s.SpanContext().TraceID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		if s.Status().Code == codes.Error {
			e.log.Warn("span failed", append(fields, zap.String("status", s.Status().Description))...)
			continue
		}
		e.log.Debug("span", fields...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
