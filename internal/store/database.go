package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Database is the narrow slice of *sqlx.DB the store needs, instrumented
// with a span per call so slow queries show up in traces.
type Database interface {
	NamedExecContext(context.Context, string, any) (sql.Result, error)
	SelectContext(context.Context, any, string, ...any) error
	PingContext(context.Context) error
}

type database struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

// NewDatabase wraps db with span instrumentation using tracer.
func NewDatabase(db *sqlx.DB, tracer trace.Tracer) Database {
	return &database{db: db, tracer: tracer}
}

func (dm database) NamedExecContext(ctx context.Context, query string, args any) (sql.Result, error) {
	ctx, span := dm.addSpanTags(ctx, "NamedExecContext", query)
	defer span.End()
	return dm.db.NamedExecContext(ctx, query, args)
}

func (dm database) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	ctx, span := dm.addSpanTags(ctx, "SelectContext", query)
	defer span.End()
	return dm.db.SelectContext(ctx, dest, query, args...)
}

func (dm database) PingContext(ctx context.Context) error {
	ctx, span := dm.addSpanTags(ctx, "PingContext", "")
	defer span.End()
	return dm.db.PingContext(ctx)
}

func (dm database) addSpanTags(ctx context.Context, method, query string) (context.Context, trace.Span) {
	ctx, span := dm.tracer.Start(ctx,
		fmt.Sprintf("sql_%s", method),
		trace.WithAttributes(
			attribute.String("sql.statement", query),
			attribute.String("span.kind", "client"),
			attribute.String("peer.service", "postgres"),
			attribute.String("db.type", "sql"),
		),
	)
	return ctx, span
}
