package postgres

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var defaultDBAttributes = []attribute.KeyValue{
	attribute.String("db.system", "postgresql"),
	attribute.String("db.sql.table", "vanguard_jobs"),
}

// executeAndTrace runs op inside a client span and records its error, if any.
func (db *DB) executeAndTrace(ctx context.Context, spanName string, attrs []attribute.KeyValue, op func(ctx context.Context) error) error {
	attrs = append(attrs, defaultDBAttributes...)
	ctx, span := db.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	if err := op(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
