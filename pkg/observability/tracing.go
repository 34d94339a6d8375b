package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/jvparquet"

// Span names
const (
	SpanFlush      = "pipeline.flush"
	SpanWriteBatch = "columnar.write_batch"
)

// Attribute keys shared by the pipeline and the writer
const (
	AttrRecordSpec = attribute.Key("jv.record_spec")
	AttrRows       = attribute.Key("jv.rows")
	AttrSegment    = attribute.Key("jv.segment")
)

// Tracer returns the tracer of the current global provider. It is looked up
// on each call so that a provider installed later is honoured.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span tagged with spec and the batch row count
func StartSpan(ctx context.Context, name, spec string, rows int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(
		AttrRecordSpec.String(spec),
		AttrRows.Int(rows),
	))
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
